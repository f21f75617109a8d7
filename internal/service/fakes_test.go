package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
)

const testPrompt = "You are a friendly assistant for an online shop."

type sentReply struct {
	Conversation model.Conversation
	Text         string
}

type fakeBackend struct {
	mu        sync.Mutex
	convs     []model.Conversation
	listErr   error
	histories map[string][]model.Message
	histErr   map[string]error
	panicOn   map[string]bool
	sendErr   error
	sent      []sentReply
}

func (f *fakeBackend) ListUnread(_ context.Context, limit int) ([]model.Conversation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.convs) > limit {
		return f.convs[:limit], nil
	}
	return f.convs, nil
}

func (f *fakeBackend) GetMessages(_ context.Context, conv model.Conversation, _ int) ([]model.Message, error) {
	if f.panicOn[conv.ID] {
		panic("history decoder blew up")
	}
	if err := f.histErr[conv.ID]; err != nil {
		return nil, err
	}
	return f.histories[conv.ID], nil
}

func (f *fakeBackend) SendReply(_ context.Context, conv model.Conversation, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentReply{Conversation: conv, Text: text})
	return nil
}

func (f *fakeBackend) Sent() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentReply(nil), f.sent...)
}

type fakeOrders struct {
	orders map[int64][]model.Order
	err    error
}

func (f *fakeOrders) BuyerOrders(_ context.Context, buyerID int64) ([]model.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[buyerID], nil
}

type fakeComplaints struct {
	states map[int64]model.ComplaintState
	err    error
	calls  atomic.Int32
}

func (f *fakeComplaints) ComplaintState(_ context.Context, buyerID int64) (model.ComplaintState, error) {
	f.calls.Add(1)
	if f.err != nil {
		return model.ComplaintState{}, f.err
	}
	return f.states[buyerID], nil
}

type fakeOrderProcessor struct {
	err   error
	calls atomic.Int32
}

func (f *fakeOrderProcessor) TriggerOrderProcessing(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakeStore struct {
	mu         sync.Mutex
	err        error
	complaints map[string]model.ComplaintRecord
	changes    map[string]model.ChangeRequestRecord
	writes     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		complaints: make(map[string]model.ComplaintRecord),
		changes:    make(map[string]model.ChangeRequestRecord),
	}
}

func (f *fakeStore) UpsertComplaint(_ context.Context, rec model.ComplaintRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.complaints[rec.InvoiceNumber] = rec
	return nil
}

func (f *fakeStore) UpsertChangeRequest(_ context.Context, rec model.ChangeRequestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.changes[rec.InvoiceNumber] = rec
	return nil
}

func (f *fakeStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// fakeLLM answers from a script; once the script is exhausted the last entry repeats.
type fakeLLM struct {
	mu       sync.Mutex
	script   []llmResult
	requests []*llm.CompletionRequest
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

type llmResult struct {
	resp *llm.CompletionResponse
	err  error
}

func replyWith(content string) llmResult {
	return llmResult{resp: &llm.CompletionResponse{Content: content}}
}

func toolCallsWith(calls ...llm.ToolInvocation) llmResult {
	return llmResult{resp: &llm.CompletionResponse{ToolCalls: calls}}
}

func failWith(err error) llmResult {
	return llmResult{err: err}
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if len(f.script) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	r := f.script[idx]
	return r.resp, r.err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLLM) Request(i int) *llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

type recordingPublisher struct {
	mu        sync.Mutex
	outcomes  []model.OutcomeEvent
	summaries []model.RunSummary
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, e *model.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, *e)
	return nil
}

func (p *recordingPublisher) PublishRunSummary(_ context.Context, s *model.RunSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, *s)
	return nil
}

// engine wires the real components to fakes.
type engine struct {
	backend    *fakeBackend
	orders     *fakeOrders
	complaints *fakeComplaints
	processor  *fakeOrderProcessor
	store      *fakeStore
	model      *fakeLLM
	events     *recordingPublisher
	logs       *observer.ObservedLogs
	sleeps     []time.Duration
	invoker    *ModelInvoker
	pipeline   *Pipeline
	scheduler  *ChatScheduler
}

type engineOption func(*engineConfig)

type engineConfig struct {
	shops   map[int64]bool
	workers int
}

func withShops(shops map[int64]bool) engineOption {
	return func(c *engineConfig) { c.shops = shops }
}

func withWorkers(n int) engineOption {
	return func(c *engineConfig) { c.workers = n }
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()

	ec := engineConfig{workers: 4}
	for _, o := range opts {
		o(&ec)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromCore(core)

	e := &engine{
		backend:    &fakeBackend{histories: map[string][]model.Message{}, histErr: map[string]error{}, panicOn: map[string]bool{}},
		orders:     &fakeOrders{orders: map[int64][]model.Order{}},
		complaints: &fakeComplaints{states: map[int64]model.ComplaintState{}},
		processor:  &fakeOrderProcessor{},
		store:      newFakeStore(),
		model:      &fakeLLM{},
		events:     &recordingPublisher{},
		logs:       logs,
	}

	settings := config.NewSettings(&config.Config{OpenAIModel: "gpt-test", OpenAITemperature: 0.4, SystemPrompt: testPrompt}, config.StoredSettings{}, ec.shops)

	dispatcher := NewToolCallDispatcher(e.store, time.Second)
	e.invoker = NewModelInvoker(e.model, settings, dispatcher, InvokerOptions{
		MaxAttempts: 3,
		RetryDelay:  5 * time.Second,
		CallTimeout: time.Second,
	})
	var sleepMu sync.Mutex
	e.invoker.sleep = func(_ context.Context, d time.Duration) error {
		sleepMu.Lock()
		defer sleepMu.Unlock()
		e.sleeps = append(e.sleeps, d)
		return nil
	}

	e.pipeline = NewPipeline(
		e.backend,
		NewOrderStateResolver(e.orders, time.Second),
		NewComplaintGate(e.complaints, time.Second),
		NewConversationBuilder(settings),
		e.invoker,
		e.events,
		PipelineOptions{HistoryPageSize: 25, CallTimeout: time.Second},
		log,
	)
	e.scheduler = NewChatScheduler(e.backend, e.processor, e.pipeline, settings, e.events, SchedulerOptions{
		Workers:                ec.workers,
		PageSize:               50,
		CallTimeout:            time.Second,
		TriggerOrderProcessing: true,
	}, log)

	return e
}

// addConversation registers an unread conversation whose history is the given texts, buyer first.
func (e *engine) addConversation(conv model.Conversation, history ...model.Message) {
	e.backend.convs = append(e.backend.convs, conv)
	e.backend.histories[conv.ID] = history
}

func (e *engine) turn(conv model.Conversation, orders model.OrderState) *Turn {
	core, _ := observer.New(zapcore.DebugLevel)
	return &Turn{RunID: "run-test", Conversation: conv, Orders: orders, Log: logger.FromCore(core)}
}

func buyerText(id, text string) model.Message {
	return model.Message{ID: id, Type: model.MessageTypeText, Text: text}
}

func shopText(id, text string) model.Message {
	return model.Message{ID: id, SenderIsShop: true, Type: model.MessageTypeText, Text: text}
}

func testConversation(id string, shopID, buyerID int64) model.Conversation {
	return model.Conversation{ID: id, ShopID: shopID, ShopName: "Toko Makmur", BuyerID: buyerID, BuyerName: "budi_s"}
}

var errBoom = errors.New("boom")
