package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/shoes_cart/internal/catalog"
	"github.com/fjod/shoes_cart/internal/config"
	"github.com/fjod/shoes_cart/internal/events"
	h "github.com/fjod/shoes_cart/internal/http"
	"github.com/fjod/shoes_cart/internal/logger"
	"github.com/fjod/shoes_cart/internal/notify"
	"github.com/fjod/shoes_cart/internal/service"
	"github.com/fjod/shoes_cart/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const serviceName = "shoes-cart"

func main() {
	cfg := config.Load()
	root := logger.New(os.Stdout, cfg.LogLevel)

	if err := run(cfg, root); err != nil {
		logger.Component(root, "main").WithError(err).Fatal("cart API failed")
	}
}

// run owns every resource it opens; they are released before it returns.
func run(cfg *config.Config, root *logrus.Logger) error {
	log := logger.Component(root, "main")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.WithError(err).Error("error shutting down tracer provider")
		}
	}()

	store, closeStorage, err := openStorage(ctx, cfg, logger.Component(root, "storage"))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage()

	api, err := catalog.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	if err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}

	toasts := notify.NewBuffer(notify.DefaultBufferSize)
	cart, err := service.NewCartStore(ctx, service.Options{
		Stock:    api,
		Catalog:  api,
		Storage:  store,
		Notifier: notify.Multi(notify.NewLog(logger.Component(root, "notify")), toasts),
		Key:      cfg.StorageKey,
		Log:      logger.Component(root, "cart"),
	})
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(
			events.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...),
			cfg.StorageKey,
			logger.Component(root, "events"),
		)
		unsubscribe := cart.Subscribe(publisher.Handle)

		flushed := make(chan struct{})
		go func() {
			publisher.Run(ctx)
			close(flushed)
		}()
		// deferred calls run in reverse: stop feeding, wait for the flush, close the writer
		defer publisher.Close()
		defer func() { <-flushed }()
		defer unsubscribe()
		log.WithField("topic", cfg.KafkaTopic).Info("publishing cart updates")
	}

	httpLog := logger.Component(root, "http")
	handler := h.NewCartHandler(cart, toasts, cfg.RequestTimeout, httpLog)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(handler, httpLog, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("cart API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		stop()
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	log.Info("server exited")
	return nil
}
