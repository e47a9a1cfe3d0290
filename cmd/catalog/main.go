// Package main runs the catalog fixture server that cartd reads products and stock from.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/rocketcart/internal/catalogsrv"
	"github.com/abgdnv/rocketcart/internal/config"
	"github.com/abgdnv/rocketcart/pkg/bootstrap"
	"github.com/abgdnv/rocketcart/pkg/config/configloader"
	"github.com/abgdnv/rocketcart/pkg/server"
	"golang.org/x/sync/errgroup"
)

const serviceName = "catalog"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.CatalogConfig](serviceName, configloader.Options{
		Defaults:   config.CatalogDefaults(),
		ConfigFile: "catalog.yaml",
	})
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	seed, err := catalogsrv.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	catalog, err := catalogsrv.NewCatalog(seed)
	if err != nil {
		return err
	}
	logger.Info("Catalog seeded", "file", cfg.SeedFile, "products", len(seed.Products))

	mux := server.NewChiRouter(logger)
	catalogsrv.NewHandler(catalog, logger).RegisterRoutes(mux)
	httpServer := server.NewHTTPServer(cfg.HTTPServer, mux)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
