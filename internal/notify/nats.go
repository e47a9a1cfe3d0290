package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/abgdnv/rocketcart/pkg/messaging"
	"github.com/abgdnv/rocketcart/pkg/messaging/events"
)

// BusNotifier publishes notices as events. Publish errors are logged and dropped.
type BusNotifier struct {
	publisher messaging.Publisher
	subject   string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewBusNotifier(publisher messaging.Publisher, subject string, timeout time.Duration, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		publisher: publisher,
		subject:   subject,
		timeout:   timeout,
		logger:    logger.With("component", "notify.bus"),
	}
}

func (b *BusNotifier) Notify(ctx context.Context, n cart.Notice) {
	// the notice outlives a cancelled request
	ctx = context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	event := events.NewCartNoticeEvent(b.subject, n.ID, string(n.Kind), n.Message, n.ProductID, n.CreatedAt)
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish cart notice", "notice_id", n.ID, "error", err)
	}
}
