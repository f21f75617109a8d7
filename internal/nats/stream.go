package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/yorozuya/autochat/internal/model"
)

const (
	// StreamName is the name of the autochat audit stream.
	StreamName = "AUTOCHAT"

	// SubjectPrefix is the prefix for all autochat subjects.
	SubjectPrefix = "autochat"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the audit stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Autochat conversation outcomes and run summaries",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// OutcomeSubject returns the subject for a conversation's outcomes. The outcome itself is only
// in the payload, so the last message on the subject is the conversation's latest outcome.
func OutcomeSubject(shopID int64, conversationID string) string {
	return fmt.Sprintf("%s.%d.%s.outcome", SubjectPrefix, shopID, token(conversationID))
}

// RunSubject returns the subject for a run summary.
func RunSubject(runID string) string {
	return fmt.Sprintf("%s.runs.%s", SubjectPrefix, token(runID))
}

// ShopFilter returns the filter subject for all outcomes of a shop.
func ShopFilter(shopID int64) string {
	return fmt.Sprintf("%s.%s.*.outcome", SubjectPrefix, strconv.FormatInt(shopID, 10))
}

// token makes a value safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// PublishOutcome publishes a conversation outcome event.
func (m *StreamManager) PublishOutcome(ctx context.Context, event *model.OutcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, OutcomeSubject(event.ShopID, event.ConversationID), data); err != nil {
		return fmt.Errorf("failed to publish outcome: %w", err)
	}
	return nil
}

// PublishRunSummary publishes the summary of a finished run.
func (m *StreamManager) PublishRunSummary(ctx context.Context, summary *model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, RunSubject(summary.RunID), data); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}
	return nil
}

// RecentOutcomes returns up to limit outcome events of a shop, the latest one per conversation.
func (m *StreamManager) RecentOutcomes(ctx context.Context, shopID int64, limit int) ([]model.OutcomeEvent, error) {
	js := m.client.JetStream()

	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ShopFilter(shopID)},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outcomes: %w", err)
	}

	var events []model.OutcomeEvent
	for msg := range batch.Messages() {
		var event model.OutcomeEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", err)
	}

	return events, nil
}
