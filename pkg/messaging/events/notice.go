// Package events contains the events published by rocketcart.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultNoticeSubject is used when no subject is configured.
const DefaultNoticeSubject = "cart.notifications.error"

// CartNoticeEvent mirrors a user-facing cart notice on the message bus.
type CartNoticeEvent struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	ProductID int       `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	subject string
}

// NewCartNoticeEvent builds an event routed to subject, or DefaultNoticeSubject when empty.
func NewCartNoticeEvent(subject string, id uuid.UUID, kind, message string, productID int, at time.Time) CartNoticeEvent {
	if subject == "" {
		subject = DefaultNoticeSubject
	}
	return CartNoticeEvent{
		ID:        id,
		Kind:      kind,
		Message:   message,
		ProductID: productID,
		CreatedAt: at,
		subject:   subject,
	}
}

func (e CartNoticeEvent) Subject() string {
	return e.subject
}

func (e CartNoticeEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e CartNoticeEvent) MessageID() string {
	return e.ID.String()
}
