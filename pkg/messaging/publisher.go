// Package messaging defines the broker-agnostic event publishing contract.
package messaging

import (
	"context"
)

// Event is a message with a routing subject and an encoded payload.
type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Identified events carry a stable id the broker can use for duplicate detection.
type Identified interface {
	MessageID() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
