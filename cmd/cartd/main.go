// Package main runs cartd, the shopping cart service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "net/http/pprof"

	"github.com/abgdnv/rocketcart/internal/app"
	"github.com/abgdnv/rocketcart/internal/catalog"
	"github.com/abgdnv/rocketcart/internal/config"
	"github.com/abgdnv/rocketcart/internal/storage"
	"github.com/abgdnv/rocketcart/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/rocketcart/pkg/config"
	"github.com/abgdnv/rocketcart/pkg/config/configloader"
	"github.com/abgdnv/rocketcart/pkg/messaging"
	natsclient "github.com/abgdnv/rocketcart/pkg/nats"
	"github.com/abgdnv/rocketcart/pkg/server"
	"github.com/abgdnv/rocketcart/pkg/telemetry"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "cartd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, assembles the cart and serves it until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName, configloader.Options{Defaults: config.Defaults()})
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Failed to shut down tracer provider", "error", err)
		}
	}()

	meterProvider, metricsHandler, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down meter provider", "error", err)
		}
	}()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()
	logger.Info("Storage ready", "driver", cfg.Storage.Driver)

	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		Timeout:        cfg.Catalog.Timeout,
		CircuitBreaker: cfg.Catalog.CircuitBreaker,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	var bus messaging.Publisher
	if cfg.Notify.Nats.Enabled {
		nc, err := natsclient.NewClient(cfg.Notify.Nats.Url, cfg.Notify.Nats.Timeout)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Error("Failed to drain NATS connection", "error", err)
			}
		}()
		js, err := natsclient.NewJetStreamContext(nc)
		if err != nil {
			return err
		}
		if err := natsclient.EnsureStream(ctx, js, cfg.Notify.Nats.Stream, cfg.Notify.Nats.Subject); err != nil {
			return err
		}
		bus = natsclient.NewNatsPublisher(js)
		logger.Info("Publishing cart notices to NATS", "subject", cfg.Notify.Nats.Subject)
	}

	deps, err := app.SetupDependencies(ctx, cfg, app.Collaborators{
		Catalog:        catalogClient,
		Storage:        store,
		Bus:            bus,
		Meter:          meterProvider,
		MetricsHandler: metricsHandler,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("Cart loaded", "items", deps.Cart.Len())

	httpServer := app.SetupHttpServer(deps, cfg)

	// listeners are opened before any server goroutine starts
	grpcLis, err := grpcListener(cfg.Grpc)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start the gRPC health server if a port is configured
	if grpcLis != nil {
		grpcServer, healthSrv := server.NewHealthGRPCServer(cfg.Grpc.ReflectionEnabled)
		g.Go(func() error {
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			logger.Info("gRPC server listening", slog.String("addr", grpcLis.Addr().String()))
			if err := grpcServer.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down gRPC server...")
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr:              cfg.PProf.Addr,
			ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			// pprofServer uses http.DefaultServeMux, which carries the pprof handlers
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// grpcListener opens the gRPC port, or returns nil when gRPC is disabled.
func grpcListener(cfg pkgconfig.GrpcServerConfig) (net.Listener, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on gRPC port %s: %w", cfg.Port, err)
	}
	return lis, nil
}
