package printqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/logger"
)

type stubJobStore struct {
	hashes map[string]map[string]string
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{hashes: map[string]map[string]string{}}
}

func (s *stubJobStore) HSetNX(_ context.Context, key, field string, value any) (bool, error) {
	hash, ok := s.hashes[key]
	if !ok {
		hash = map[string]string{}
		s.hashes[key] = hash
	}
	if _, exists := hash[field]; exists {
		return false, nil
	}
	hash[field] = value.(string)
	return true, nil
}

func (s *stubJobStore) HSet(_ context.Context, key, field string, value any) error {
	hash, ok := s.hashes[key]
	if !ok {
		hash = map[string]string{}
		s.hashes[key] = hash
	}
	hash[field] = value.(string)
	return nil
}

func (s *stubJobStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for field, value := range s.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (s *stubJobStore) HDel(_ context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(s.hashes[key], field)
	}
	return nil
}

func (s *stubJobStore) PrintQueueKey(terminalID string) string {
	return "tw:print:jobs:" + terminalID
}

type recordingPrinter struct {
	failures int
	printed  []string
}

func (p *recordingPrinter) Print(_ context.Context, orderID string, _ enums.TicketType) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("printer offline")
	}
	p.printed = append(p.printed, orderID)
	return nil
}

func newTestQueue(t *testing.T, store *stubJobStore, printer Printer, maxAttempts int) *Queue {
	t.Helper()
	queue, err := NewQueue(QueueParams{
		Store:       store,
		Printer:     printer,
		Logger:      logger.New(logger.Options{ServiceName: "printqueue-test"}),
		TerminalID:  "term-1",
		MaxAttempts: maxAttempts,
	})
	require.NoError(t, err)
	return queue
}

func TestSubmitPrintsImmediatelyWhenHealthy(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{}
	queue := newTestQueue(t, store, printer, 0)

	queued, err := queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)
	require.False(t, queued)
	require.Equal(t, []string{"order-1"}, printer.printed)
	require.Empty(t, store.hashes[store.PrintQueueKey("term-1")])
}

func TestSubmitQueuesOnFailureAndDeduplicates(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{failures: 3}
	queue := newTestQueue(t, store, printer, 0)

	queued, err := queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)
	require.True(t, queued)

	// The same ticket failing again collapses into the queued job.
	queued, err = queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)
	require.True(t, queued)

	// A different ticket type is a separate job.
	queued, err = queue.Submit(context.Background(), "order-1", enums.TicketTypeReceipt)
	require.NoError(t, err)
	require.True(t, queued)

	require.Len(t, store.hashes[store.PrintQueueKey("term-1")], 2)
}

func TestDrainPrintsAndRemovesJobs(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{failures: 1}
	queue := newTestQueue(t, store, printer, 0)

	_, err := queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)

	require.NoError(t, queue.Drain(context.Background(), nil))
	require.Equal(t, []string{"order-1"}, printer.printed)
	require.Empty(t, store.hashes[store.PrintQueueKey("term-1")])
}

func TestDrainResolvesDraftIDs(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{failures: 1}
	queue := newTestQueue(t, store, printer, 0)

	_, err := queue.Submit(context.Background(), "draft-abc", enums.TicketTypeKitchen)
	require.NoError(t, err)

	resolve := func(id string) string {
		if id == "draft-abc" {
			return "persisted-123"
		}
		return id
	}
	require.NoError(t, queue.Drain(context.Background(), resolve))
	require.Equal(t, []string{"persisted-123"}, printer.printed)
}

func TestDrainKeepsFailingJobWithAttemptCount(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{failures: 10}
	queue := newTestQueue(t, store, printer, 5)

	_, err := queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)

	err = queue.Drain(context.Background(), nil)
	require.Error(t, err)

	key := store.PrintQueueKey("term-1")
	raw := store.hashes[key][fieldKey("order-1", enums.TicketTypeKitchen)]
	job, decodeErr := decodeJob(raw)
	require.NoError(t, decodeErr)
	require.Equal(t, 2, job.Attempts)
}

func TestDrainDropsExhaustedJobs(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{failures: 100}
	queue := newTestQueue(t, store, printer, 2)

	_, err := queue.Submit(context.Background(), "order-1", enums.TicketTypeKitchen)
	require.NoError(t, err)

	// Attempts: 1 from submit, 2 on the first drain pass hits the cap.
	require.NoError(t, queue.Drain(context.Background(), nil))
	require.Empty(t, store.hashes[store.PrintQueueKey("term-1")])
}

func TestDrainDropsUndecodableJobs(t *testing.T) {
	store := newStubJobStore()
	printer := &recordingPrinter{}
	queue := newTestQueue(t, store, printer, 0)

	key := store.PrintQueueKey("term-1")
	require.NoError(t, store.HSet(context.Background(), key, "garbage", "{not json"))

	require.NoError(t, queue.Drain(context.Background(), nil))
	require.Empty(t, store.hashes[key])
	require.Empty(t, printer.printed)
}
