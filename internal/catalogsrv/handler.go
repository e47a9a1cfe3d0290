package catalogsrv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/rocketcart/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	catalog  *Catalog
	validate *validator.Validate
	logger   *slog.Logger
}

// StockUpdateDto is the body of PUT /stock/{id}.
type StockUpdateDto struct {
	Amount *int `json:"amount" validate:"required,gte=0"`
}

func NewHandler(catalog *Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger.With("component", "catalog"),
	}
}

// RegisterRoutes registers the HTTP routes for the catalog.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.FindAllProducts)
	r.Get("/products/{id}", h.FindProduct)
	r.Get("/stock", h.FindAllStock)
	r.Get("/stock/{id}", h.FindStock)
	r.Put("/stock/{id}", h.UpdateStock)
	r.Get("/healthz", h.HealthCheck)
}

func (h *Handler) FindAllProducts(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, h.catalog.Products())
}

func (h *Handler) FindProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	p, err := h.catalog.Product(id)
	if err != nil {
		mLogger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, p)
}

func (h *Handler) FindAllStock(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, h.catalog.AllStock())
}

func (h *Handler) FindStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	s, err := h.catalog.Stock(id)
	if err != nil {
		mLogger.WarnContext(r.Context(), "Stock not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Stock for product with ID %d not found", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, s)
}

func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	var dto StockUpdateDto
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
	updated, err := h.catalog.SetStock(id, *dto.Amount)
	if errors.Is(err, ErrNotFound) {
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Stock for product with ID %d not found", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Stock updated", "ID", id, "amount", updated.Amount)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", middleware.GetReqID(r.Context()))
}
