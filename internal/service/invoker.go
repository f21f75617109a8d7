package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/pkg/metrics"
)

var (
	// ErrRateLimited means the model endpoint answered 429; the turn is skipped.
	ErrRateLimited = errors.New("model rate limited")

	// ErrRetriesExhausted means every attempt failed.
	ErrRetriesExhausted = errors.New("model retries exhausted")
)

// InvokerOptions configures retry behaviour of the model call.
type InvokerOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	CallTimeout time.Duration
}

// ModelInvoker calls the language model with bounded retries and classifies the response.
type ModelInvoker struct {
	client     llm.Client
	settings   *config.Settings
	dispatcher *ToolCallDispatcher
	opts       InvokerOptions
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewModelInvoker creates an invoker.
func NewModelInvoker(client llm.Client, settings *config.Settings, dispatcher *ToolCallDispatcher, opts InvokerOptions) *ModelInvoker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &ModelInvoker{
		client:     client,
		settings:   settings,
		dispatcher: dispatcher,
		opts:       opts,
		sleep:      sleepContext,
	}
}

// Invoke sends the turn's messages and returns the reply text. An empty text with a nil
// error means the model produced nothing to send. ErrRateLimited and ErrRetriesExhausted
// mean no reply this turn.
func (m *ModelInvoker) Invoke(ctx context.Context, turn *Turn) (string, error) {
	req := &llm.CompletionRequest{
		Model:       m.settings.Model(),
		Messages:    turn.Messages,
		Temperature: m.settings.Temperature(),
		Tools:       ToolDefinitions(),
	}

	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
				return "", err
			}
		}

		resp, err := m.complete(ctx, req)
		if err == nil {
			metrics.RecordModelTokens(req.Model, resp.TokensIn, resp.TokensOut)
			return m.handle(ctx, turn, resp), nil
		}

		status := llm.StatusCode(err)
		if status == http.StatusTooManyRequests {
			turn.Log.Warn("model rate limited, skipping turn", zap.Int("attempt", attempt))
			return "", ErrRateLimited
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		turn.Log.Warn("model call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.opts.MaxAttempts),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	turn.Log.Error("model call failed after all retries", zap.Int("attempts", m.opts.MaxAttempts))
	return "", ErrRetriesExhausted
}

func (m *ModelInvoker) complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := withTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := m.client.Complete(ctx, req)
	metrics.RecordModelAttempt(req.Model, statusClass(llm.StatusCode(err)), time.Since(start).Seconds())
	return resp, err
}

// handle dispatches tool calls for buyers with orders, otherwise returns the content.
func (m *ModelInvoker) handle(ctx context.Context, turn *Turn, resp *llm.CompletionResponse) string {
	if len(resp.ToolCalls) == 0 || !turn.Orders.HasOrder {
		return resp.Content
	}

	var reply string
	for _, call := range resp.ToolCalls {
		text, ok := m.dispatcher.Dispatch(ctx, turn, call)
		if ok && reply == "" {
			reply = text
		}
	}
	return reply
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "transport"
	case status == http.StatusOK:
		return "ok"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
