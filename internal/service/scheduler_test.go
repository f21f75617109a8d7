package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
)

func TestOpenComplaintStaysSilent(t *testing.T) {
	e := newEngine(t)
	conv := testConversation("c1", 77, 901)
	e.addConversation(conv, buyerText("m1", "where is my refund??"))
	e.orders.orders[901] = []model.Order{{InvoiceNumber: "INV001", Status: "COMPLETED"}}
	e.complaints.states[901] = model.ComplaintState{HasOpenComplaint: true}
	e.model.script = []llmResult{replyWith("should never be sent")}

	for i := 0; i < 2; i++ {
		summary := e.scheduler.RunAll(context.Background())
		assert.Equal(t, 1, summary.Outcomes[model.OutcomeBlockedComplaint])
	}

	assert.Zero(t, e.model.Calls())
	assert.Empty(t, e.backend.Sent())
}

func TestPendingChangeIsInModelContext(t *testing.T) {
	e := newEngine(t)
	conv := testConversation("c1", 77, 901)
	e.addConversation(conv, buyerText("m1", "is my change ok?"))
	e.orders.orders[901] = []model.Order{{InvoiceNumber: "INV001", Status: "PROCESSED"}}
	e.complaints.states[901] = model.ComplaintState{
		HasOpenChangeRequest: true,
		ChangeDetails:        []model.ChangeDetail{{Summary: "swap to black", Color: "black"}},
	}
	e.model.script = []llmResult{replyWith("Yes, your change to black is recorded.")}

	e.scheduler.RunAll(context.Background())

	require.Equal(t, 1, e.model.Calls())
	var found bool
	for _, m := range e.model.Request(0).Messages {
		if m.Role == "system" && strings.Contains(m.Content, "swap to black") && strings.Contains(m.Content, "black") {
			found = true
		}
	}
	assert.True(t, found, "pending change summary missing from model context")
	assert.Zero(t, e.store.Writes())
	require.Len(t, e.backend.Sent(), 1)
}

func TestUnsupportedTrailingMessageSkipsModel(t *testing.T) {
	e := newEngine(t)
	conv := testConversation("c1", 77, 901)
	e.addConversation(conv,
		buyerText("m1", "hello"),
		model.Message{ID: "m2", Type: model.MessageTypeOther},
	)
	e.model.script = []llmResult{replyWith("hi")}

	summary := e.scheduler.RunAll(context.Background())

	assert.Equal(t, 1, summary.Outcomes[model.OutcomeSkippedMessageType])
	assert.Zero(t, e.model.Calls())
	assert.Empty(t, e.backend.Sent())
}

func TestZeroOrderHelloIsAnsweredVerbatim(t *testing.T) {
	e := newEngine(t)
	conv := testConversation("c1", 77, 901)
	e.addConversation(conv, buyerText("m1", "hello"))
	e.model.script = []llmResult{replyWith("Hello! How can we help you today?")}

	summary := e.scheduler.RunAll(context.Background())

	require.Equal(t, 1, e.model.Calls())
	assert.Contains(t, e.model.Request(0).Messages[1].Content, noOrderGuidance)
	assert.Zero(t, e.complaints.calls.Load())

	sent := e.backend.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello! How can we help you today?", sent[0].Text)
	assert.Equal(t, conv, sent[0].Conversation)
	assert.Zero(t, e.store.Writes())
	assert.Equal(t, 1, summary.Outcomes[model.OutcomeReplied])
}

func TestTwoOrderCancellation(t *testing.T) {
	e := newEngine(t)
	conv := testConversation("c1", 77, 901)
	e.addConversation(conv, buyerText("m1", "please cancel my first order"))
	e.orders.orders[901] = []model.Order{
		{InvoiceNumber: "INV001", Status: "PROCESSED"},
		{InvoiceNumber: "INV002", Status: "SHIPPED"},
	}
	e.model.script = []llmResult{toolCallsWith(llm.ToolInvocation{
		ID:   "call_1",
		Name: "request_order_change",
		Arguments: `{"buyer_id": "901", "shop_name": "Toko Makmur", "invoice_number": "INV001",
			"order_status": "PROCESSED", "summary": "cancel order", "change": {}}`,
	})}

	summary := e.scheduler.RunAll(context.Background())

	assert.Contains(t, e.model.Request(0).Messages[1].Content, multiOrderCancelNote)
	require.Len(t, e.store.changes, 1)
	assert.Equal(t, "cancel order", e.store.changes["INV001"].Summary)

	sent := e.backend.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "INV001")
	assert.Equal(t, 1, summary.Outcomes[model.OutcomeReplied])

	require.NotEmpty(t, e.events.outcomes)
	last := e.events.outcomes[len(e.events.outcomes)-1]
	assert.Equal(t, model.ToolRequestOrderChange, last.Tool)
	assert.Equal(t, "INV001", last.InvoiceNumber)
}

func TestDisabledShopIsSkipped(t *testing.T) {
	e := newEngine(t, withShops(map[int64]bool{77: false}))
	e.addConversation(testConversation("c1", 77, 901), buyerText("m1", "hello"))
	e.model.script = []llmResult{replyWith("hi")}

	summary := e.scheduler.RunAll(context.Background())

	assert.Zero(t, e.model.Calls())
	assert.Empty(t, e.backend.Sent())
	assert.Equal(t, 1, e.logs.FilterMessage("auto-reply disabled for shop, skipping").Len())
	assert.Equal(t, 1, summary.Outcomes[model.OutcomeSkippedShop])
	assert.Zero(t, summary.ChatsProcessed)
}

func TestIncompleteConversationIsSkipped(t *testing.T) {
	e := newEngine(t)
	e.addConversation(model.Conversation{ID: "c1", ShopID: 77}, buyerText("m1", "hello"))
	e.addConversation(testConversation("c2", 77, 902), buyerText("m1", "hello"))
	e.model.script = []llmResult{replyWith("hi")}

	summary := e.scheduler.RunAll(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.ChatsFound)
	assert.Equal(t, 1, summary.ChatsProcessed)
	assert.Equal(t, 1, summary.Outcomes[model.OutcomeSkippedInvalid])
	assert.Equal(t, 1, e.logs.FilterMessage("conversation missing identifying fields, skipping").Len())
	require.Len(t, e.backend.Sent(), 1)
	assert.Equal(t, "c2", e.backend.Sent()[0].Conversation.ID)
}

func TestFailuresStayLocal(t *testing.T) {
	e := newEngine(t)
	e.addConversation(testConversation("panics", 77, 901), buyerText("m1", "hi"))
	e.addConversation(testConversation("no-history", 77, 902), buyerText("m1", "hi"))
	e.addConversation(testConversation("empty", 77, 903))
	e.addConversation(testConversation("ok", 77, 904), buyerText("m1", "hi"))
	e.backend.panicOn["panics"] = true
	e.backend.histErr["no-history"] = errBoom
	e.model.script = []llmResult{replyWith("hello there")}

	summary := e.scheduler.RunAll(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 4, summary.ChatsProcessed)
	assert.Equal(t, map[model.Outcome]int{
		model.OutcomeFailed:            1,
		model.OutcomeHistoryFailed:     1,
		model.OutcomeSkippedNoMessages: 1,
		model.OutcomeReplied:           1,
	}, summary.Outcomes)
	require.Len(t, e.backend.Sent(), 1)
	assert.Equal(t, "ok", e.backend.Sent()[0].Conversation.ID)
	assert.Equal(t, 1, e.logs.FilterMessage("conversation pipeline panicked").Len())
}

func TestSendFailure(t *testing.T) {
	e := newEngine(t)
	e.addConversation(testConversation("c1", 77, 901), buyerText("m1", "hi"))
	e.backend.sendErr = errBoom
	e.model.script = []llmResult{replyWith("hello")}

	summary := e.scheduler.RunAll(context.Background())

	assert.Equal(t, 1, summary.Outcomes[model.OutcomeSendFailed])
	assert.Equal(t, 1, e.model.Calls())
}

func TestModelFailureMeansNoReply(t *testing.T) {
	e := newEngine(t)
	e.addConversation(testConversation("c1", 77, 901), buyerText("m1", "hi"))
	e.model.script = []llmResult{failWith(apiError(500))}

	summary := e.scheduler.RunAll(context.Background())

	assert.Equal(t, 1, summary.Outcomes[model.OutcomeNoReply])
	assert.Equal(t, 3, e.model.Calls())
	assert.Empty(t, e.backend.Sent())
}

func TestWorkerPoolIsBounded(t *testing.T) {
	e := newEngine(t, withWorkers(3))
	for i := 0; i < 20; i++ {
		e.addConversation(testConversation(fmt.Sprintf("c%d", i), 77, int64(1000+i)), buyerText("m1", "hi"))
	}
	e.model.script = []llmResult{replyWith("hi")}
	e.model.delay = 10 * time.Millisecond

	summary := e.scheduler.RunAll(context.Background())

	assert.Equal(t, 20, summary.ChatsProcessed)
	assert.Equal(t, 20, summary.Outcomes[model.OutcomeReplied])
	assert.Len(t, e.backend.Sent(), 20)
	assert.LessOrEqual(t, e.model.maxSeen.Load(), int32(3))
	assert.Positive(t, e.model.maxSeen.Load())
}

func TestRunSummary(t *testing.T) {
	e := newEngine(t)
	e.addConversation(testConversation("c1", 77, 901), buyerText("m1", "hi"))
	e.model.script = []llmResult{replyWith("hello")}

	summary := e.scheduler.RunAll(context.Background())

	assert.NotEmpty(t, summary.RunID)
	assert.True(t, summary.OrderProcessed)
	assert.Equal(t, int32(1), e.processor.calls.Load())
	assert.False(t, summary.Timestamp.Before(summary.StartedAt))

	require.Len(t, e.events.summaries, 1)
	assert.Equal(t, summary.RunID, e.events.summaries[0].RunID)
	require.Len(t, e.events.outcomes, 1)
	assert.Equal(t, summary.RunID, e.events.outcomes[0].RunID)
	assert.Equal(t, model.OutcomeReplied, e.events.outcomes[0].Outcome)
}

func TestRunContinuesWhenOrderTriggerFails(t *testing.T) {
	e := newEngine(t)
	e.processor.err = errBoom
	e.addConversation(testConversation("c1", 77, 901), buyerText("m1", "hi"))
	e.model.script = []llmResult{replyWith("hello")}

	summary := e.scheduler.RunAll(context.Background())

	assert.False(t, summary.OrderProcessed)
	assert.True(t, summary.Success)
	assert.Len(t, e.backend.Sent(), 1)
}

func TestListFailureEndsRun(t *testing.T) {
	e := newEngine(t)
	e.backend.listErr = errBoom

	summary := e.scheduler.RunAll(context.Background())

	assert.False(t, summary.Success)
	assert.Zero(t, summary.ChatsFound)
	assert.Zero(t, e.model.Calls())
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) RunAll(context.Context) *model.RunSummary {
	close(b.started)
	<-b.release
	return &model.RunSummary{RunID: "r1", Success: true}
}

func TestExclusiveRunnerRejectsOverlap(t *testing.T) {
	inner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	runner := NewExclusiveRunner(inner)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		summary, err := runner.TryRun(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "r1", summary.RunID)
	}()

	<-inner.started
	_, err := runner.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(inner.release)
	wg.Wait()
}
