package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockLookup returns the available quantity of a product.
type StockLookup interface {
	Stock(ctx context.Context, productID int) (Stock, error)
}

// ProductLookup returns product details.
// Returns ErrProductNotFound if the catalog has no such product.
type ProductLookup interface {
	Product(ctx context.Context, productID int) (Product, error)
}

// KeyValueStore is the durable storage the cart is saved to.
type KeyValueStore interface {
	// Get returns the value stored under key. The bool is false when nothing is stored.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier surfaces user-facing notices. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Observer is told about the outcome of every cart operation.
type Observer interface {
	ObserveOperation(op Op, err error)
}

// Kind classifies a notice.
type Kind string

const (
	KindStockUnavailable Kind = "stock_unavailable"
	KindProductNotFound  Kind = "product_not_found"
	KindProductNotInCart Kind = "product_not_in_cart"
	KindAddFailed        Kind = "add_failed"
	KindRemoveFailed     Kind = "remove_failed"
	KindUpdateFailed     Kind = "update_failed"
)

// Op names a cart operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// Notice is a user-facing message produced by a rejected or failed operation.
type Notice struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Op        Op        `json:"op"`
	ProductID int       `json:"product_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Messages holds the text shown for each notice kind.
// ProductNotInCart reuses the remove or update text of the operation that produced it.
type Messages struct {
	StockUnavailable string
	ProductNotFound  string
	AddFailed        string
	RemoveFailed     string
	UpdateFailed     string
}

var EnglishMessages = Messages{
	StockUnavailable: "Requested quantity is out of stock",
	ProductNotFound:  "Product does not exist",
	AddFailed:        "Failed to add product",
	RemoveFailed:     "Failed to remove product",
	UpdateFailed:     "Failed to change product quantity",
}

// Text returns the message for a notice of kind k produced by op.
func (m Messages) Text(k Kind, op Op) string {
	switch k {
	case KindStockUnavailable:
		return m.StockUnavailable
	case KindProductNotFound:
		return m.ProductNotFound
	case KindAddFailed:
		return m.AddFailed
	case KindRemoveFailed:
		return m.RemoveFailed
	case KindUpdateFailed:
		return m.UpdateFailed
	case KindProductNotInCart:
		if op == OpUpdate {
			return m.UpdateFailed
		}
		return m.RemoveFailed
	}
	return ""
}
