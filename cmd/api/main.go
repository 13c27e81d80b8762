package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/courier-dispatch/api/controllers"
	"github.com/angelmondragon/courier-dispatch/api/routes"
	"github.com/angelmondragon/courier-dispatch/internal/couriers"
	"github.com/angelmondragon/courier-dispatch/internal/deliveries"
	"github.com/angelmondragon/courier-dispatch/internal/notifications"
	"github.com/angelmondragon/courier-dispatch/internal/orders"
	"github.com/angelmondragon/courier-dispatch/internal/realtime"
	"github.com/angelmondragon/courier-dispatch/pkg/config"
	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/instance"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
	"github.com/angelmondragon/courier-dispatch/pkg/migrate"
	"github.com/angelmondragon/courier-dispatch/pkg/redis"
)

const (
	shutdownTimeout   = 15 * time.Second
	pushTimeout       = 5 * time.Second
	readyHookTimeout  = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	retrier := db.NewTxRetrier(dbClient, db.RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseBackoff: cfg.Dispatch.BaseBackoff,
	}, db.WithRetryLogger(logg), db.WithRetryObserver(dispatchMetrics))

	pusher, closePusher, err := newPusher(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap push transport", err)
		os.Exit(1)
	}
	defer func() {
		if err := closePusher(); err != nil {
			logg.Error(context.Background(), "error closing push transport", err)
		}
	}()

	notificationRepo := notifications.NewRepository(dbClient.DB())
	emitter, err := notifications.NewEmitter(notificationRepo, pusher, logg,
		notifications.WithAsync(pushTimeout),
		notifications.WithMetrics(dispatchMetrics),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification emitter", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	forwarder, err := realtime.NewRedisForwarder(redisClient, cfg.Realtime.ChannelPrefix, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime forwarder", err)
		os.Exit(1)
	}

	courierRepo := couriers.NewRepository(dbClient.DB())
	courierService, err := couriers.NewService(courierRepo, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create courier service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())

	// the ready hook closes over the delivery service, which needs the order repository first
	var deliveryService deliveries.Service
	var onReady orders.ReadyHook
	var readyHooks sync.WaitGroup
	if cfg.FeatureFlags.AutoAssignOnReady {
		onReady = func(ctx context.Context, orderID uuid.UUID) {
			readyHooks.Add(1)
			go func() {
				defer readyHooks.Done()
				hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readyHookTimeout)
				defer cancel()
				if _, err := deliveryService.AutoAssign(hookCtx, orderID); err != nil {
					logg.Error(logg.WithOrderID(hookCtx, orderID), "auto assign on ready failed", err)
				}
			}()
		}
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Couriers: courierRepo,
		Tx:       retrier,
		Notifier: emitter,
		Realtime: forwarder,
		Numbers:  orders.NewRedisSequencer(redisClient, logg),
		Metrics:  dispatchMetrics,
		Logger:   logg,
		OnReady:  onReady,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	deliveryService, err = deliveries.NewService(deliveries.ServiceParams{
		Orders:        orderRepo,
		Couriers:      courierRepo,
		Matcher:       courierService,
		Tx:            retrier,
		Notifier:      emitter,
		Realtime:      forwarder,
		Metrics:       dispatchMetrics,
		Logger:        logg,
		MatchRadiusKm: cfg.Dispatch.MatchRadiusKm,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"instance":       instance.ID("api"),
		"push_transport": cfg.Push.Kind(),
	})

	router := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		Readiness:     map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
		Gatherer:      registry,
		Orders:        orderService,
		Deliveries:    deliveryService,
		Couriers:      courierService,
		Notifications: notificationService,
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		// hooks may still emit notifications, so they drain before the emitter
		if err := waitGroupDone(shutdownCtx, &readyHooks); err != nil {
			logg.Error(shutdownCtx, "ready hooks did not finish", err)
		}
		if err := emitter.Drain(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "notification drain failed", err)
		}
	}
}

func waitGroupDone(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
