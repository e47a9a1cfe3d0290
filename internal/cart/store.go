package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStorageKey is the key the cart is saved under unless configured otherwise.
const DefaultStorageKey = "@RocketShoes:cart"

var tracer = otel.Tracer("github.com/abgdnv/rocketcart/internal/cart")

// Deps are the collaborators a Store talks to.
type Deps struct {
	Stock    StockLookup
	Products ProductLookup
	Storage  KeyValueStore
	Notifier Notifier
}

// Options tune a Store. The zero value is usable.
type Options struct {
	// Key overrides DefaultStorageKey.
	Key string
	// AdvisoryExistenceCheck keeps adding a new product after the existence check reported it missing.
	// The details fetch that follows normally fails too, producing a second notice.
	// true is the behavior of the storefront this cart replaces; the default false departs
	// from it and stops the add after the ProductNotFound notice.
	AdvisoryExistenceCheck bool
	// Messages defaults to EnglishMessages.
	Messages *Messages
	Logger   *slog.Logger
	Observer Observer
}

// Store holds the current cart and applies add, remove and update operations to it.
// It is safe for concurrent use. Mutations are serialized; each one sees the cart
// committed by the previous one.
type Store struct {
	stock    StockLookup
	products ProductLookup
	storage  KeyValueStore
	notifier Notifier

	key      string
	advisory bool
	messages Messages
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	writeMu sync.Mutex
	mu      sync.RWMutex
	cart    Cart
}

// NewStore loads the saved cart and returns a Store ready for use.
// A missing or blank stored value starts an empty cart; any other value that is
// not a valid cart is an error.
func NewStore(ctx context.Context, deps Deps, opts Options) (*Store, error) {
	if deps.Stock == nil || deps.Products == nil || deps.Storage == nil || deps.Notifier == nil {
		return nil, ErrMissingDependency
	}
	s := &Store{
		stock:    deps.Stock,
		products: deps.Products,
		storage:  deps.Storage,
		notifier: deps.Notifier,
		key:      opts.Key,
		advisory: opts.AdvisoryExistenceCheck,
		messages: EnglishMessages,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      time.Now,
	}
	if s.key == "" {
		s.key = DefaultStorageKey
	}
	if opts.Messages != nil {
		s.messages = *opts.Messages
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "cart")

	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	s.cart = Cart{}
	if ok && strings.TrimSpace(raw) != "" {
		var saved Cart
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			return nil, fmt.Errorf("failed to decode saved cart under %q: %w", s.key, err)
		}
		if saved != nil {
			s.cart = saved
		}
	}
	return s, nil
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cart)
}

// AddProduct puts one unit of the product in the cart.
// A product already in the cart is checked against stock first; a new product is
// looked up in the catalog and added with amount 1.
func (s *Store) AddProduct(ctx context.Context, productID int) (err error) {
	ctx, span := tracer.Start(ctx, "cart.AddProduct", trace.WithAttributes(attribute.Int("product.id", productID)))
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.guard(ctx, span, OpAdd, productID, &err)

	current := s.cart
	if idx := current.Index(productID); idx >= 0 {
		stock, err := s.stock.Stock(ctx, productID)
		if err != nil {
			return s.fail(ctx, OpAdd, productID, fmt.Errorf("stock lookup: %w", err))
		}
		wanted := current[idx].Amount + 1
		if stock.Amount == 0 || stock.Amount < wanted {
			return s.reject(ctx, OpAdd, productID, KindStockUnavailable, ErrStockUnavailable)
		}
		next := current.Clone()
		next[idx].Amount = wanted
		return s.commit(ctx, OpAdd, productID, next)
	}

	if _, err := s.products.Product(ctx, productID); err != nil {
		if !errors.Is(err, ErrProductNotFound) {
			return s.fail(ctx, OpAdd, productID, fmt.Errorf("existence check: %w", err))
		}
		s.notify(ctx, OpAdd, productID, KindProductNotFound)
		if !s.advisory {
			return ErrProductNotFound
		}
	}

	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpAdd, productID, fmt.Errorf("product lookup: %w", err))
	}
	next := append(current.Clone(), newLineItem(product))
	// identity follows the requested id
	next[len(next)-1].ProductID = productID
	return s.commit(ctx, OpAdd, productID, next)
}

// RemoveProduct drops the product from the cart.
func (s *Store) RemoveProduct(ctx context.Context, productID int) (err error) {
	ctx, span := tracer.Start(ctx, "cart.RemoveProduct", trace.WithAttributes(attribute.Int("product.id", productID)))
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.guard(ctx, span, OpRemove, productID, &err)

	next := s.cart.without(productID)
	if len(next) == len(s.cart) {
		return s.reject(ctx, OpRemove, productID, KindProductNotInCart, ErrProductNotInCart)
	}
	return s.commit(ctx, OpRemove, productID, next)
}

// UpdateProductAmount sets the amount of a product already in the cart.
// Amounts below 1 are ignored without a notice.
func (s *Store) UpdateProductAmount(ctx context.Context, productID, amount int) (err error) {
	ctx, span := tracer.Start(ctx, "cart.UpdateProductAmount", trace.WithAttributes(
		attribute.Int("product.id", productID),
		attribute.Int("product.amount", amount),
	))
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.guard(ctx, span, OpUpdate, productID, &err)

	stock, err := s.stock.Stock(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpUpdate, productID, fmt.Errorf("stock lookup: %w", err))
	}
	if stock.Amount < amount {
		return s.reject(ctx, OpUpdate, productID, KindStockUnavailable, ErrStockUnavailable)
	}
	idx := s.cart.Index(productID)
	if idx < 0 {
		return s.reject(ctx, OpUpdate, productID, KindProductNotInCart, ErrProductNotInCart)
	}
	if amount < 1 {
		return nil
	}
	next := s.cart.Clone()
	next[idx].Amount = amount
	return s.commit(ctx, OpUpdate, productID, next)
}

// commit saves next and only then makes it the current cart.
func (s *Store) commit(ctx context.Context, op Op, productID int, next Cart) error {
	data, err := json.Marshal(next)
	if err != nil {
		return s.fail(ctx, op, productID, fmt.Errorf("encode cart: %w", err))
	}
	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		return s.fail(ctx, op, productID, fmt.Errorf("save cart: %w", err))
	}
	s.mu.Lock()
	s.cart = next
	s.mu.Unlock()
	return nil
}

func (s *Store) reject(ctx context.Context, op Op, productID int, kind Kind, sentinel error) error {
	s.notify(ctx, op, productID, kind)
	return sentinel
}

// fail logs cause, shows the generic notice of op and returns its sentinel.
func (s *Store) fail(ctx context.Context, op Op, productID int, cause error) error {
	kind, sentinel := genericFailure(op)
	s.logger.ErrorContext(ctx, "cart operation failed", "op", op, "product_id", productID, "error", cause)
	trace.SpanFromContext(ctx).RecordError(cause)
	s.notify(ctx, op, productID, kind)
	return sentinel
}

// guard turns a panic inside an operation into its generic failure and reports the outcome.
func (s *Store) guard(ctx context.Context, span trace.Span, op Op, productID int, err *error) {
	if r := recover(); r != nil {
		*err = s.fail(ctx, op, productID, fmt.Errorf("panic: %v", r))
	}
	if *err != nil && IsFailure(*err) {
		span.SetStatus(codes.Error, (*err).Error())
	}
	if s.observer != nil {
		s.observer.ObserveOperation(op, *err)
	}
}

func (s *Store) notify(ctx context.Context, op Op, productID int, kind Kind) {
	s.notifier.Notify(ctx, Notice{
		ID:        uuid.New(),
		Kind:      kind,
		Op:        op,
		ProductID: productID,
		Message:   s.messages.Text(kind, op),
		CreatedAt: s.now().UTC(),
	})
}

func genericFailure(op Op) (Kind, error) {
	switch op {
	case OpRemove:
		return KindRemoveFailed, ErrRemoveFailed
	case OpUpdate:
		return KindUpdateFailed, ErrUpdateFailed
	default:
		return KindAddFailed, ErrAddFailed
	}
}

// IsFailure reports whether err is the generic failure of an operation, as opposed to a rejection.
func IsFailure(err error) bool {
	return errors.Is(err, ErrAddFailed) || errors.Is(err, ErrRemoveFailed) || errors.Is(err, ErrUpdateFailed)
}
