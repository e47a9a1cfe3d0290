// Package resilience provides HTTP client middleware that protects callers from an unhealthy upstream.
package resilience

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/rocketcart/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// errUpstreamStatus marks a 5xx response so the breaker counts it as a failure.
// It never leaves this package: the response itself is handed back to the caller.
var errUpstreamStatus = errors.New("upstream responded with server error")

// BreakerTransport is an http.RoundTripper that wraps every request in a circuit breaker.
// Transport errors and 5xx responses trip the breaker, other statuses (404 included) do not.
type BreakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreakerTransport creates a BreakerTransport named name in front of next.
// A nil next uses http.DefaultTransport.
func NewBreakerTransport(name string, cfg config.CircuitBreakerConfig, next http.RoundTripper) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	return &BreakerTransport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](st),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamStatus
		}
		return resp, nil
	})
	if errors.Is(err, errUpstreamStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.breaker.Name(), err)
	}
	return resp, nil
}

// State returns the current breaker state, mostly useful for health reporting.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}
