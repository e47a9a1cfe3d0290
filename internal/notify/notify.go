// Package notify delivers cart notices to the places a user or operator can see them.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/rocketcart/internal/cart"
)

var PortugueseMessages = cart.Messages{
	StockUnavailable: "Quantidade solicitada fora de estoque",
	ProductNotFound:  "Produto não existe",
	AddFailed:        "Erro na adição do produto",
	RemoveFailed:     "Erro na remoção do produto",
	UpdateFailed:     "Erro na alteração de quantidade do produto",
}

// MessagesFor returns the notice texts for locale. An empty locale is English.
func MessagesFor(locale string) (cart.Messages, error) {
	switch locale {
	case "", "en":
		return cart.EnglishMessages, nil
	case "pt-BR":
		return PortugueseMessages, nil
	}
	return cart.Messages{}, fmt.Errorf("unsupported locale: %q", locale)
}

// Fanout delivers each notice to every notifier in order.
type Fanout []cart.Notifier

func (f Fanout) Notify(ctx context.Context, n cart.Notice) {
	for _, next := range f {
		next.Notify(ctx, n)
	}
}

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n cart.Notice) {
	l.logger.WarnContext(ctx, n.Message,
		"notice_id", n.ID,
		"kind", n.Kind,
		"op", n.Op,
		"product_id", n.ProductID,
	)
}
