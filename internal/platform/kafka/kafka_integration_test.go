//go:build integration

package kafka_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/audit/ingest"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/kafka/consumer"
	"custodia/internal/platform/kafka/producer"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	auditmem "custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/testutil/containers"
)

// TestIngestRoundTrip drives the whole audit ingest path against a real
// broker: EnsureTopics, produce wire-encoded events, consume through the
// topic router, materialize into the store idempotently.
func TestIngestRoundTrip(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t).Broker
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	topic := fmt.Sprintf("custodia.audit.ingest.%s", uuid.NewString()[:8])

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, kafka.EnsureTopics(ctx, []string{broker}, topic))
	// Re-creating an existing topic is not an error.
	require.NoError(t, kafka.EnsureTopics(ctx, []string{broker}, topic))

	store := auditmem.NewInMemoryStore()
	router := ingest.NewRouter(logger, nil)
	router.Register(topic, ingest.NewHandler(store, logger))

	cons, err := consumer.New(ctx, consumer.Config{
		Brokers: []string{broker},
		Group:   "custodia-ingest-test-" + uuid.NewString()[:8],
		Topics:  []string{topic},
	}, router, logger)
	require.NoError(t, err)

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- cons.Run(consumeCtx) }()
	defer func() {
		stopConsumer()
		cons.Close()
		assert.NoError(t, <-done)
	}()

	prod, err := producer.New(ctx, []string{broker}, topic)
	require.NoError(t, err)
	defer prod.Close()

	event := audit.Event{
		ID:        id.NewEventID(),
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC(),
		Action:    string(audit.EventErasureRequested),
		SubjectID: uuid.NewString(),
		Code:      "ER-2026-042",
		Tier:      "anonymise",
	}
	payload, err := audit.MarshalWire(event)
	require.NoError(t, err)

	// A redelivered duplicate and a malformed record must both be harmless.
	require.NoError(t, prod.Publish(ctx, []byte(event.SubjectID), payload))
	require.NoError(t, prod.Publish(ctx, []byte(event.SubjectID), payload))
	require.NoError(t, prod.Publish(ctx, []byte("junk"), []byte("not json")))

	require.Eventually(t, func() bool {
		events, err := store.ListBySubject(ctx, event.SubjectID, 10)
		return err == nil && len(events) >= 1
	}, 30*time.Second, 100*time.Millisecond, "event never materialized")

	events, err := store.ListBySubject(ctx, event.SubjectID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.Action, got.Action)
	assert.Equal(t, event.Code, got.Code)
	assert.WithinDuration(t, event.Timestamp, got.Timestamp, time.Second)
}
