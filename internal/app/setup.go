// Package app assembles the cartd application from its collaborators.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/abgdnv/rocketcart/internal/config"
	"github.com/abgdnv/rocketcart/internal/metrics"
	"github.com/abgdnv/rocketcart/internal/notify"
	"github.com/abgdnv/rocketcart/internal/transport/rest"
	"github.com/abgdnv/rocketcart/pkg/messaging"
	"github.com/abgdnv/rocketcart/pkg/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
)

// Catalog is what the cart needs from the remote catalog.
type Catalog interface {
	cart.StockLookup
	cart.ProductLookup
}

// Storage is a cart.KeyValueStore that can be health checked.
type Storage interface {
	cart.KeyValueStore
	rest.Pinger
}

// Collaborators are the outside systems a cart is built on.
type Collaborators struct {
	Catalog Catalog
	Storage Storage
	// Bus publishes notices as events. Nil disables publishing.
	Bus messaging.Publisher
	// Meter records operation and notice counters. Nil disables metrics.
	Meter metric.MeterProvider
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

type Dependencies struct {
	Cart    *cart.Store
	Stock   cart.StockLookup
	Feed    *notify.Feed
	Health  []rest.Pinger
	Metrics http.Handler
	Logger  *slog.Logger
}

// SetupDependencies builds the notifier chain and loads the saved cart.
func SetupDependencies(ctx context.Context, cfg *config.Config, c Collaborators, logger *slog.Logger) (*Dependencies, error) {
	messages, err := notify.MessagesFor(cfg.Notify.Locale)
	if err != nil {
		return nil, err
	}

	feed := notify.NewFeed(cfg.Notify.Feed.Size)
	fanout := notify.Fanout{notify.NewLogNotifier(logger), feed}
	if c.Bus != nil {
		fanout = append(fanout, notify.NewBusNotifier(c.Bus, cfg.Notify.Nats.Subject, cfg.Notify.Nats.Timeout, logger))
	}

	var notifier cart.Notifier = fanout
	var observer cart.Observer
	if c.Meter != nil {
		m, err := metrics.New(c.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create cart metrics: %w", err)
		}
		notifier = m.Notifier(fanout)
		observer = m
	}

	store, err := cart.NewStore(ctx, cart.Deps{
		Stock:    c.Catalog,
		Products: c.Catalog,
		Storage:  c.Storage,
		Notifier: notifier,
	}, cart.Options{
		Key:                    cfg.Storage.Key,
		AdvisoryExistenceCheck: cfg.Cart.AdvisoryExistenceCheck,
		Messages:               &messages,
		Logger:                 logger,
		Observer:               observer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cart store: %w", err)
	}

	return &Dependencies{
		Cart:    store,
		Stock:   c.Catalog,
		Feed:    feed,
		Health:  []rest.Pinger{c.Storage},
		Metrics: c.MetricsHandler,
		Logger:  logger,
	}, nil
}

// SetupHttpHandler builds the cartd router.
// Used by E2E tests to run the application in an httptest.Server.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	rest.NewHandler(deps.Cart, deps.Stock, deps.Feed, deps.Logger, deps.Health...).RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	return otelhttp.NewHandler(mux, "cartd")
}

// SetupHttpServer creates the cartd HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}
