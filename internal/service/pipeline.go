package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
	"github.com/yorozuya/autochat/pkg/metrics"
	"github.com/yorozuya/autochat/pkg/tracing"
)

// Turn is the state of one conversation's pipeline run. It is owned by a single worker.
type Turn struct {
	RunID         string
	Conversation  model.Conversation
	Orders        model.OrderState
	Gate          model.GateDecision
	Messages      []llm.ChatMessage
	Tool          model.ToolName
	InvoiceNumber string
	Log           *logger.Logger
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	HistoryPageSize int
	CallTimeout     time.Duration
}

// Pipeline runs the per-conversation steps in their fixed order.
type Pipeline struct {
	backend  ChatBackend
	resolver *OrderStateResolver
	gate     *ComplaintGate
	builder  *ConversationBuilder
	invoker  *ModelInvoker
	events   EventPublisher
	opts     PipelineOptions
	logger   *logger.Logger
}

// NewPipeline creates a pipeline. A nil publisher drops events and a nil logger uses the global one.
func NewPipeline(
	backend ChatBackend,
	resolver *OrderStateResolver,
	gate *ComplaintGate,
	builder *ConversationBuilder,
	invoker *ModelInvoker,
	events EventPublisher,
	opts PipelineOptions,
	log *logger.Logger,
) *Pipeline {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = logger.Global()
	}
	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = 25
	}
	return &Pipeline{
		backend:  backend,
		resolver: resolver,
		gate:     gate,
		builder:  builder,
		invoker:  invoker,
		events:   events,
		opts:     opts,
		logger:   log,
	}
}

// Process runs the pipeline for one conversation and returns its outcome.
func (p *Pipeline) Process(ctx context.Context, runID string, conv model.Conversation) model.Outcome {
	ctx, span := tracing.Tracer().Start(ctx, "autochat.conversation", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("conversation_id", conv.ID),
		attribute.Int64("shop_id", conv.ShopID),
	))
	defer span.End()

	turn := &Turn{
		RunID:        runID,
		Conversation: conv,
		Log:          p.logger.WithConversation(runID, conv.ID, conv.ShopID),
	}

	outcome, reason := p.run(ctx, turn)
	span.SetAttributes(attribute.String("outcome", string(outcome)))

	p.publish(ctx, turn, outcome, reason)
	return outcome
}

func (p *Pipeline) run(ctx context.Context, turn *Turn) (model.Outcome, string) {
	conv := turn.Conversation
	log := turn.Log

	historyCtx, cancel := withTimeout(ctx, p.opts.CallTimeout)
	history, err := p.backend.GetMessages(historyCtx, conv, p.opts.HistoryPageSize)
	cancel()
	if err != nil {
		log.Error("failed to fetch conversation history", zap.Error(err))
		return model.OutcomeHistoryFailed, err.Error()
	}
	if len(history) == 0 {
		log.Info("conversation has no messages, skipping")
		return model.OutcomeSkippedNoMessages, ""
	}
	if !ReplyableTail(history) {
		last := history[len(history)-1]
		log.Info("skipping reply, unsupported trailing message type", zap.String("message_type", string(last.Type)))
		return model.OutcomeSkippedMessageType, string(last.Type)
	}

	turn.Orders = p.resolver.Resolve(ctx, log, conv.BuyerID)

	turn.Gate = p.gate.Check(ctx, log, conv.BuyerID, turn.Orders)
	if turn.Gate.Blocked {
		log.Info("open complaint on record, leaving conversation to a human",
			zap.String("latest_invoice", turn.Orders.Latest.InvoiceNumber),
		)
		return model.OutcomeBlockedComplaint, ""
	}

	turn.Messages = p.builder.Build(conv, turn.Orders, turn.Gate, history)

	reply, err := p.invoker.Invoke(ctx, turn)
	if err != nil {
		return model.OutcomeNoReply, err.Error()
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Info("no reply produced", zap.Bool("has_order", turn.Orders.HasOrder))
		return model.OutcomeNoReply, ""
	}

	sendCtx, cancel := withTimeout(ctx, p.opts.CallTimeout)
	err = p.backend.SendReply(sendCtx, conv, reply)
	cancel()
	if err != nil {
		log.Error("failed to send reply", zap.Int64("buyer_id", conv.BuyerID), zap.Error(err))
		metrics.RecordReply("failed")
		return model.OutcomeSendFailed, err.Error()
	}

	log.Info("reply sent", zap.Int64("buyer_id", conv.BuyerID), zap.Int("length", len(reply)))
	metrics.RecordReply("sent")
	return model.OutcomeReplied, ""
}

// Record publishes an outcome decided outside Process, such as a skip.
func (p *Pipeline) Record(ctx context.Context, runID string, conv model.Conversation, outcome model.Outcome, reason string) {
	p.publish(ctx, &Turn{RunID: runID, Conversation: conv, Log: p.logger}, outcome, reason)
}

func (p *Pipeline) publish(ctx context.Context, turn *Turn, outcome model.Outcome, reason string) {
	metrics.RecordConversation(string(outcome))

	event := &model.OutcomeEvent{
		ID:             uuid.NewString(),
		RunID:          turn.RunID,
		ConversationID: turn.Conversation.ID,
		ShopID:         turn.Conversation.ShopID,
		BuyerID:        turn.Conversation.BuyerID,
		Outcome:        outcome,
		Reason:         reason,
		InvoiceNumber:  turn.InvoiceNumber,
		Tool:           turn.Tool,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.events.PublishOutcome(ctx, event); err != nil {
		turn.Log.Warn("failed to publish outcome event", zap.String("outcome", string(outcome)), zap.Error(err))
	}
}
