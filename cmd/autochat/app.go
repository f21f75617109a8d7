package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yorozuya/autochat/internal/backend"
	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/llm"
	natsclient "github.com/yorozuya/autochat/internal/nats"
	"github.com/yorozuya/autochat/internal/service"
	"github.com/yorozuya/autochat/internal/store"
	"github.com/yorozuya/autochat/pkg/logger"
	"github.com/yorozuya/autochat/pkg/tracing"
)

// app holds the wired engine and the resources it must release.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *store.Store
	nats   *natsclient.Client
	stream *natsclient.StreamManager
	runner *service.ExclusiveRunner

	closers []func()
}

// bootstrap loads configuration and builds the logger.
func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var log *logger.Logger
	if cfg.IsDevelopment() {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)

	return cfg, log, nil
}

// newApp connects every dependency and assembles the scheduler.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "autochat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = tracing.Shutdown(context.Background(), tp) })
		}
	}

	gormLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		gormLevel = gormlogger.Info
	}
	st, err := store.Open(store.Options{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormLevel,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, func() { _ = st.Close() })

	if cfg.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	stored, err := st.LoadSettings(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	shops, err := st.LoadShopAutoReply(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	settings := config.NewSettings(cfg, stored, shops)

	llmClient, err := llm.NewOpenAIClient(settings.APIKey(), cfg.OpenAIBaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	var events service.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = nc
		a.closers = append(a.closers, nc.Close)

		a.stream = natsclient.NewStreamManager(nc)
		if err := a.stream.EnsureStream(ctx); err != nil {
			a.Close()
			return nil, err
		}
		events = a.stream
	} else {
		log.Info("NATS_URL not set, outcome events disabled")
	}

	chat := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.CallTimeout)

	dispatcher := service.NewToolCallDispatcher(st, cfg.CallTimeout)
	invoker := service.NewModelInvoker(llmClient, settings, dispatcher, service.InvokerOptions{
		MaxAttempts: cfg.ModelMaxAttempts,
		RetryDelay:  cfg.ModelRetryDelay,
		CallTimeout: cfg.CallTimeout,
	})
	pipeline := service.NewPipeline(
		chat,
		service.NewOrderStateResolver(chat, cfg.CallTimeout),
		service.NewComplaintGate(chat, cfg.CallTimeout),
		service.NewConversationBuilder(settings),
		invoker,
		events,
		service.PipelineOptions{
			HistoryPageSize: cfg.HistoryPageSize,
			CallTimeout:     cfg.CallTimeout,
		},
		log,
	)

	var processor service.OrderProcessor
	if cfg.TriggerOrderProcessing {
		processor = chat
	}
	scheduler := service.NewChatScheduler(chat, processor, pipeline, settings, events, service.SchedulerOptions{
		Workers:                cfg.Workers,
		PageSize:               cfg.ConversationPageSize,
		CallTimeout:            cfg.CallTimeout,
		TriggerOrderProcessing: cfg.TriggerOrderProcessing,
	}, log)
	a.runner = service.NewExclusiveRunner(scheduler)

	log.Info("engine initialized",
		zap.String("model", settings.Model()),
		zap.Int("workers", cfg.Workers),
		zap.Bool("events", events != nil),
	)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
