package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
	"github.com/yorozuya/autochat/pkg/metrics"
	"github.com/yorozuya/autochat/pkg/tracing"
)

// ErrRunInProgress is returned when a run is requested while another is still draining.
var ErrRunInProgress = errors.New("run already in progress")

// SchedulerOptions configures a ChatScheduler.
type SchedulerOptions struct {
	Workers                int
	PageSize               int
	CallTimeout            time.Duration
	TriggerOrderProcessing bool
}

// ChatScheduler fans unread conversations out to a bounded worker pool.
type ChatScheduler struct {
	backend  ChatBackend
	orders   OrderProcessor
	pipeline *Pipeline
	settings *config.Settings
	events   EventPublisher
	opts     SchedulerOptions
	logger   *logger.Logger
}

// NewChatScheduler creates a scheduler. orders may be nil to skip the processing trigger,
// and a nil logger uses the global one.
func NewChatScheduler(
	backend ChatBackend,
	orders OrderProcessor,
	pipeline *Pipeline,
	settings *config.Settings,
	events EventPublisher,
	opts SchedulerOptions,
	log *logger.Logger,
) *ChatScheduler {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = logger.Global()
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return &ChatScheduler{
		backend:  backend,
		orders:   orders,
		pipeline: pipeline,
		settings: settings,
		events:   events,
		opts:     opts,
		logger:   log,
	}
}

// RunAll processes every unread conversation once and returns when all have finished.
func (s *ChatScheduler) RunAll(ctx context.Context) *model.RunSummary {
	start := time.Now()
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		Outcomes:  make(map[model.Outcome]int),
		StartedAt: start.UTC(),
	}
	log := s.logger.With(zap.String("run_id", summary.RunID))

	ctx, span := tracing.Tracer().Start(ctx, "autochat.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", summary.RunID))

	if s.opts.TriggerOrderProcessing && s.orders != nil {
		summary.OrderProcessed = s.triggerOrders(ctx, log)
	}

	listCtx, cancel := withTimeout(ctx, s.opts.CallTimeout)
	convs, err := s.backend.ListUnread(listCtx, s.opts.PageSize)
	cancel()
	if err != nil {
		log.Error("failed to list unread conversations", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return s.finish(ctx, log, summary, start)
	}

	summary.ChatsFound = len(convs)
	if len(convs) == 0 {
		log.Info("no unread conversations")
	} else {
		log.Info("unread conversations found", zap.Int("count", len(convs)))
	}

	var mu sync.Mutex
	record := func(outcome model.Outcome, processed bool) {
		mu.Lock()
		defer mu.Unlock()
		summary.Outcomes[outcome]++
		if processed {
			summary.ChatsProcessed++
		}
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for _, conv := range convs {
		if !conv.Valid() {
			log.Error("conversation missing identifying fields, skipping",
				zap.String("conversation_id", conv.ID),
				zap.Int64("shop_id", conv.ShopID),
				zap.Int64("buyer_id", conv.BuyerID),
			)
			record(model.OutcomeSkippedInvalid, false)
			s.pipeline.Record(ctx, summary.RunID, conv, model.OutcomeSkippedInvalid, "missing identifying fields")
			continue
		}

		if !s.settings.AutoReplyEnabled(conv.ShopID) {
			log.Info("auto-reply disabled for shop, skipping",
				zap.String("conversation_id", conv.ID),
				zap.Int64("shop_id", conv.ShopID),
			)
			record(model.OutcomeSkippedShop, false)
			s.pipeline.Record(ctx, summary.RunID, conv, model.OutcomeSkippedShop, "")
			continue
		}

		conv := conv
		g.Go(func() error {
			record(s.process(ctx, log, summary.RunID, conv), true)
			return nil
		})
	}

	_ = g.Wait()

	summary.Success = true
	return s.finish(ctx, log, summary, start)
}

// process runs one conversation. A panic is contained to that conversation.
func (s *ChatScheduler) process(ctx context.Context, log *logger.Logger, runID string, conv model.Conversation) (outcome model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("conversation pipeline panicked",
				zap.String("conversation_id", conv.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			outcome = model.OutcomeFailed
			s.pipeline.Record(ctx, runID, conv, outcome, fmt.Sprint(r))
		}
	}()
	return s.pipeline.Process(ctx, runID, conv)
}

func (s *ChatScheduler) triggerOrders(ctx context.Context, log *logger.Logger) bool {
	ctx, cancel := withTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	if err := s.orders.TriggerOrderProcessing(ctx); err != nil {
		log.Warn("order processing trigger failed", zap.Error(err))
		return false
	}
	log.Info("order processing triggered")
	return true
}

func (s *ChatScheduler) finish(ctx context.Context, log *logger.Logger, summary *model.RunSummary, start time.Time) *model.RunSummary {
	summary.Timestamp = time.Now().UTC()

	status := "success"
	if !summary.Success {
		status = "failed"
	}
	metrics.RecordRun(status, time.Since(start).Seconds())

	log.Info("run finished",
		zap.Bool("success", summary.Success),
		zap.Int("chats_found", summary.ChatsFound),
		zap.Int("chats_processed", summary.ChatsProcessed),
		zap.Duration("duration", time.Since(start)),
	)

	if err := s.events.PublishRunSummary(ctx, summary); err != nil {
		log.Warn("failed to publish run summary", zap.Error(err))
	}
	return summary
}

// Runner runs a full pass over unread conversations.
type Runner interface {
	RunAll(ctx context.Context) *model.RunSummary
}

// ExclusiveRunner prevents overlapping runs between the cron schedule and manual triggers.
type ExclusiveRunner struct {
	mu     sync.Mutex
	runner Runner
}

// NewExclusiveRunner wraps a runner.
func NewExclusiveRunner(runner Runner) *ExclusiveRunner {
	return &ExclusiveRunner{runner: runner}
}

// TryRun starts a run unless one is already in progress.
func (r *ExclusiveRunner) TryRun(ctx context.Context) (*model.RunSummary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.runner.RunAll(ctx), nil
}
