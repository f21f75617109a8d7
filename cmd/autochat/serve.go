package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/handler"
	"github.com/yorozuya/autochat/internal/middleware"
	"github.com/yorozuya/autochat/internal/service"
	"github.com/yorozuya/autochat/pkg/logger"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := newCron(ctx, a, log)
	if err != nil {
		return err
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.router(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr), zap.String("schedule", cfg.Schedule))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Wait for an in-flight run to drain.
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("run still in progress at shutdown")
	}

	log.Info("server stopped")
	return nil
}

// newCron schedules runs. Ticks that land during a run are skipped.
func newCron(ctx context.Context, a *app, log *logger.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(a.cfg.Schedule, func() {
		if _, err := a.runner.TryRun(ctx); errors.Is(err, service.ErrRunInProgress) {
			log.Info("scheduled run skipped, previous run still in progress")
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) router() http.Handler {
	checks := map[string]handler.ReadinessCheck{"database": a.store.Ping}
	var outcomes handler.OutcomeReader
	if a.nats != nil {
		checks["nats"] = a.nats.Ping
		outcomes = a.stream
	}

	healthHandler := handler.NewHealthHandler(checks)
	runHandler := handler.NewRunHandler(a.runner, a.log)
	outcomeHandler := handler.NewOutcomeHandler(outcomes, a.log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(a.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(a.cfg.CORSAllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow))

		r.Post("/runs", runHandler.Trigger)
		r.Get("/shops/{shopID}/outcomes", outcomeHandler.List)
	})

	return r
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
