// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registration assembles and runs the Founders Day registration
// service: the public event and ticket API, the Square webhook pipeline,
// the admin surface, and the live analytics feed.
package registration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/foundersday/platform/pkg/logging"
	"github.com/foundersday/platform/services/registration/content"
	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/handlers"
	"github.com/foundersday/platform/services/registration/middleware"
	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/routes"
	"github.com/foundersday/platform/services/registration/storage"
	"github.com/foundersday/platform/services/registration/ttl"
	"github.com/foundersday/platform/services/registration/webhooks"
)

const serviceName = "registration"

// Service is the assembled registration service. Create with New, run
// with Run, release resources with Close.
type Service struct {
	cfg    Config
	logger *logging.Logger

	store     *storage.Store
	queue     *webhooks.Queue
	pool      *webhooks.Pool
	scheduler *ttl.Scheduler
	loader    *content.Loader
	feed      *handlers.FeedHub
	router    *gin.Engine

	traceShutdown func(context.Context) error
}

// New builds the service from configuration. The returned service owns
// its store; call Close when done.
func New(ctx context.Context, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: serviceName,
	})

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := datatypes.RegisterValidations(v); err != nil {
			return nil, fmt.Errorf("register validations: %w", err)
		}
	}

	svc := &Service{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: serviceName,
			Endpoint:    cfg.OTLPEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		svc.traceShutdown = shutdown
	}

	metrics := observability.NewMetrics(nil)

	storeCfg := storage.DefaultConfig()
	storeCfg.Path = cfg.DataDir
	storeCfg.Logger = logger.Slog()
	store, err := storage.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc.store = store

	svc.loader = content.NewLoader(store, logger.Slog(), cfg.ContentSeedPath)
	if cfg.ContentSeedPath != "" {
		if _, err := svc.loader.Load(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("load content seed: %w", err)
		}
	}

	svc.feed = handlers.NewFeedHub(metrics, logger.Slog())

	verifier, err := webhooks.NewVerifier(cfg.WebhookSecret(), cfg.SquareNotificationURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("webhook verifier: %w", err)
	}
	svc.queue = webhooks.NewQueue(cfg.QueueCapacity, metrics.SetQueueDepth)

	processor := webhooks.NewProcessor(store, metrics, svc.feed, logger.Slog())
	svc.pool = webhooks.NewPool(webhooks.PoolConfig{Workers: cfg.Workers},
		svc.queue, processor, store, metrics, svc.feed, logger.Slog())

	svc.scheduler = ttl.NewScheduler(store, metrics, logger.Slog(), ttl.SchedulerConfig{
		Interval: cfg.SweepInterval,
		HoldTTL:  cfg.HoldTTL,
	})

	webhookHandler := webhooks.NewHandler(verifier, svc.queue, store,
		metrics, logger.Slog(), cfg.IdempotencyTTL)
	apiHandlers := handlers.New(store, metrics, svc.feed, logger.Slog())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	routes.Register(router, routes.Config{
		ServiceName: serviceName,
		Handlers:    apiHandlers,
		Webhooks:    webhookHandler,
		Feed:        svc.feed,
		AdminToken:  cfg.AdminToken,
		WebhookRate: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.WebhookRPS,
			Burst:             cfg.WebhookBurst,
		},
		Tracing: cfg.TracingEnabled,
	})
	svc.router = router

	return svc, nil
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server, the webhook worker pool, the hold-expiry
// scheduler, and the content seed watcher, then blocks until ctx is
// cancelled or a component fails. Shutdown is graceful: the listener
// closes first, then the queue drains.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer s.scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening",
			"port", s.cfg.Port,
			"environment", s.cfg.SquareEnvironment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// The pool ignores cancellation so in-flight and queued jobs finish
	// during shutdown; queue.Close is what stops it.
	poolCtx := context.WithoutCancel(ctx)
	g.Go(func() error {
		return s.pool.Run(poolCtx)
	})

	if s.cfg.ContentSeedPath != "" {
		g.Go(func() error {
			return s.loader.Watch(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		// No new deliveries are arriving; let the workers finish what is
		// queued, then Close unblocks them.
		s.queue.Close()
		return nil
	})

	return g.Wait()
}

// Close releases the service's resources. Call after Run returns.
func (s *Service) Close() error {
	s.feed.Close()

	var errs []error
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if s.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.traceShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
