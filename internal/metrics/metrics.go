// Package metrics counts cart operations and the notices they produce.
package metrics

import (
	"context"
	"fmt"

	"github.com/abgdnv/rocketcart/internal/cart"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes of a cart operation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var _ cart.Observer = (*Metrics)(nil)

type Metrics struct {
	operations metric.Int64Counter
	notices    metric.Int64Counter
}

func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/abgdnv/rocketcart/internal/metrics")
	operations, err := meter.Int64Counter("cart.operations",
		metric.WithDescription("Cart operations by operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cart.operations counter: %w", err)
	}
	notices, err := meter.Int64Counter("cart.notices",
		metric.WithDescription("User-facing cart notices by kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cart.notices counter: %w", err)
	}
	return &Metrics{operations: operations, notices: notices}, nil
}

// ObserveOperation implements cart.Observer.
func (m *Metrics) ObserveOperation(op cart.Op, err error) {
	m.operations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("outcome", Outcome(err)),
	))
}

// Outcome classifies the error returned by a cart operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case cart.IsFailure(err):
		return OutcomeFailed
	default:
		return OutcomeRejected
	}
}

// Notifier counts every notice before passing it on to next.
func (m *Metrics) Notifier(next cart.Notifier) cart.Notifier {
	return countingNotifier{m: m, next: next}
}

type countingNotifier struct {
	m    *Metrics
	next cart.Notifier
}

func (c countingNotifier) Notify(ctx context.Context, n cart.Notice) {
	c.m.notices.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
	c.next.Notify(ctx, n)
}
