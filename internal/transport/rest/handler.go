// Package rest exposes the cart over HTTP for storefront UIs.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/abgdnv/rocketcart/internal/catalog"
	"github.com/abgdnv/rocketcart/internal/notify"
	"github.com/abgdnv/rocketcart/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// CartService is the part of cart.Store the handler uses.
type CartService interface {
	Cart() cart.Cart
	Len() int
	AddProduct(ctx context.Context, productID int) error
	RemoveProduct(ctx context.Context, productID int) error
	UpdateProductAmount(ctx context.Context, productID, amount int) error
}

// NoticeFeed is the part of notify.Feed the handler uses.
type NoticeFeed interface {
	Since(after uint64) []notify.Entry
	LastSeq() uint64
}

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cart     CartService
	stock    cart.StockLookup
	feed     NoticeFeed
	health   []Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

// UpdateAmountDto is the body of PUT /cart/items/{productId}.
type UpdateAmountDto struct {
	Amount *int `json:"amount" validate:"required"`
}

// NotificationsDto is the response of GET /notifications.
type NotificationsDto struct {
	LastSeq uint64         `json:"last_seq"`
	Items   []notify.Entry `json:"items"`
}

func NewHandler(cartService CartService, stock cart.StockLookup, feed NoticeFeed, logger *slog.Logger, health ...Pinger) *Handler {
	return &Handler{
		cart:     cartService,
		stock:    stock,
		feed:     feed,
		health:   health,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the cart facade.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Get("/cart/size", h.GetSize)
		r.Route("/cart/items/{productId}", func(r chi.Router) {
			r.Post("/", h.AddProduct)
			r.Put("/", h.UpdateProductAmount)
			r.Delete("/", h.RemoveProduct)
		})
		r.Get("/stock/{productId}", h.GetStock)
		r.Get("/notifications", h.Notifications)
	})
	r.Get("/healthz", h.HealthCheck)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, h.cart.Cart())
}

func (h *Handler) GetSize(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, map[string]int{"size": h.cart.Len()})
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "productId")
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to add product", "ID", id)
	h.respond(w, r, mLogger, h.cart.AddProduct(r.Context(), id))
}

func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "productId")
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to remove product", "ID", id)
	h.respond(w, r, mLogger, h.cart.RemoveProduct(r.Context(), id))
}

func (h *Handler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "productId")
	if !ok {
		return
	}
	var dto UpdateAmountDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return
		}
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update product amount", "ID", id, "amount", *dto.Amount)
	h.respond(w, r, mLogger, h.cart.UpdateProductAmount(r.Context(), id, *dto.Amount))
}

// GetStock returns the available quantity of a product, for pages that show it before adding.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "productId")
	if !ok {
		return
	}
	stock, err := h.stock.Stock(r.Context(), id)
	switch {
	case err == nil:
		web.RespondJSON(w, mLogger, http.StatusOK, stock)
	case errors.Is(err, catalog.ErrNotFound):
		web.RespondError(w, mLogger, http.StatusNotFound, "Stock not found")
	default:
		mLogger.ErrorContext(r.Context(), "Stock lookup failed", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusBadGateway, "Stock lookup failed")
	}
}

// Notifications returns the notices newer than the "after" sequence number.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	after, ok := web.ParseOptionalGte(r, w, mLogger, "after", 0, 0)
	if !ok {
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, NotificationsDto{
		LastSeq: h.feed.LastSeq(),
		Items:   h.feed.Since(uint64(after)),
	})
}

// HealthCheck answers 200 when every dependency responds to a ping.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.health {
		if err := p.Ping(r.Context()); err != nil {
			h.loggerWithReqID(r).WarnContext(r.Context(), "Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// respond writes the cart after a committed operation, or the error status of a rejected one.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if err == nil {
		web.RespondJSON(w, logger, http.StatusOK, h.cart.Cart())
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Cart operation failed", "error", err)
	} else {
		logger.InfoContext(r.Context(), "Cart operation rejected", "error", err)
	}
	web.RespondError(w, logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cart.ErrStockUnavailable):
		return http.StatusConflict
	case errors.Is(err, cart.ErrProductNotFound), errors.Is(err, cart.ErrProductNotInCart):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrAddFailed), errors.Is(err, cart.ErrUpdateFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", middleware.GetReqID(r.Context()))
}
