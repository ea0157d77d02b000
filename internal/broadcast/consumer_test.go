package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/outbox"
	"github.com/mvharris/tabwire/pkg/types"
)

type stubSubscriber struct {
	receive func(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

func (s *stubSubscriber) Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error {
	return s.receive(ctx, f)
}

func testBroadcastConfig() config.BroadcastConfig {
	return config.BroadcastConfig{
		MaxReconnects:    2,
		ReconnectBackoff: time.Millisecond,
		MaxBackoff:       time.Hour,
	}
}

func broadcastMessage(t *testing.T, eventType enums.OutboxEventType, eventID string, seq int64, order types.OpenOrder) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(order)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version: 1,
		EventID: eventID,
		Seq:     seq,
		Data:    data,
	})
	require.NoError(t, err)
	return &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestDecodeEventReadsEnvelopeAndAttributes(t *testing.T) {
	order := types.OpenOrder{ID: uuid.New(), Status: enums.OrderStatusSent, TotalCents: 2200, Seq: 3}
	msg := broadcastMessage(t, enums.EventOrderUpdated, "evt-1", 3, order)

	evt, err := decodeEvent(msg)
	require.NoError(t, err)
	require.Equal(t, "evt-1", evt.EventID)
	require.Equal(t, enums.EventOrderUpdated, evt.Type)
	require.Equal(t, int64(3), evt.Seq)
	require.Equal(t, order.ID, evt.Order.ID)
	require.Equal(t, 2200, evt.Order.TotalCents)
}

func TestDecodeEventFallsBackToAttributeEventID(t *testing.T) {
	order := types.OpenOrder{ID: uuid.New()}
	msg := broadcastMessage(t, enums.EventOrderCreated, "", 1, order)
	msg.Attributes["event_id"] = "evt-from-attr"

	evt, err := decodeEvent(msg)
	require.NoError(t, err)
	require.Equal(t, "evt-from-attr", evt.EventID)
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	order := types.OpenOrder{ID: uuid.New()}
	msg := broadcastMessage(t, enums.OutboxEventType("order.reheated"), "evt-1", 1, order)

	_, err := decodeEvent(msg)
	require.Error(t, err)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	msg := &gcppubsub.Message{Data: []byte("{not json"), Attributes: map[string]string{}}
	_, err := decodeEvent(msg)
	require.Error(t, err)
}

func TestRunSeedsViewBeforeConsuming(t *testing.T) {
	seeded := []types.OpenOrder{{ID: uuid.New(), Status: enums.OrderStatusSent}}
	sub := &stubSubscriber{
		receive: func(ctx context.Context, _ func(context.Context, *gcppubsub.Message)) error {
			<-ctx.Done()
			return nil
		},
	}
	consumer, err := NewConsumer(ConsumerParams{
		Subscriber: sub,
		Refetch: func(context.Context) ([]types.OpenOrder, error) {
			return seeded, nil
		},
		Logger: logger.New(logger.Options{ServiceName: "broadcast-test"}),
		Config: testBroadcastConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = consumer.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(consumer.Orders()) == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, consumer.Stale())

	cancel()
	wg.Wait()
	require.ErrorIs(t, runErr, context.Canceled)
}

func TestRunFailsWhenInitialFetchFails(t *testing.T) {
	consumer, err := NewConsumer(ConsumerParams{
		Subscriber: &stubSubscriber{receive: func(context.Context, func(context.Context, *gcppubsub.Message)) error { return nil }},
		Refetch: func(context.Context) ([]types.OpenOrder, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "order store unreachable")
		},
		Logger: logger.New(logger.Options{ServiceName: "broadcast-test"}),
		Config: testBroadcastConfig(),
	})
	require.NoError(t, err)

	err = consumer.Run(context.Background())
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestRunExhaustsReconnectBudget(t *testing.T) {
	var mu sync.Mutex
	refetches := 0
	consumer, err := NewConsumer(ConsumerParams{
		Subscriber: &stubSubscriber{
			receive: func(context.Context, func(context.Context, *gcppubsub.Message)) error {
				return errors.New("stream reset")
			},
		},
		Refetch: func(context.Context) ([]types.OpenOrder, error) {
			mu.Lock()
			refetches++
			mu.Unlock()
			return nil, nil
		},
		Logger: logger.New(logger.Options{ServiceName: "broadcast-test"}),
		Config: testBroadcastConfig(),
	})
	require.NoError(t, err)

	err = consumer.Run(context.Background())
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))

	// One seed fetch plus one refetch per surviving reconnect.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, refetches)
}

func TestRunKeepsServingWhenRefetchFails(t *testing.T) {
	seeded := []types.OpenOrder{{ID: uuid.New(), Status: enums.OrderStatusSent}}
	drops := 0
	fetches := 0
	sub := &stubSubscriber{}
	sub.receive = func(ctx context.Context, _ func(context.Context, *gcppubsub.Message)) error {
		drops++
		if drops > 1 {
			<-ctx.Done()
			return nil
		}
		return errors.New("stream reset")
	}
	consumer, err := NewConsumer(ConsumerParams{
		Subscriber: sub,
		Refetch: func(context.Context) ([]types.OpenOrder, error) {
			fetches++
			if fetches > 1 {
				return nil, errors.New("order store unreachable")
			}
			return seeded, nil
		},
		Logger: logger.New(logger.Options{ServiceName: "broadcast-test"}),
		Config: testBroadcastConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	runErr := consumer.Run(ctx)
	require.ErrorIs(t, runErr, context.DeadlineExceeded)

	// The stale view keeps serving the last known orders.
	require.True(t, consumer.Stale())
	require.Len(t, consumer.Orders(), 1)
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	base := time.Second
	max := 4 * time.Second

	backoff := nextBackoff(0, base, max)
	require.Equal(t, time.Second, backoff)
	backoff = nextBackoff(backoff, base, max)
	require.Equal(t, 2*time.Second, backoff)
	backoff = nextBackoff(backoff, base, max)
	require.Equal(t, 4*time.Second, backoff)
	backoff = nextBackoff(backoff, base, max)
	require.Equal(t, 4*time.Second, backoff)
}

func TestWithJitterStaysNearBase(t *testing.T) {
	for i := 0; i < 20; i++ {
		jittered := withJitter(time.Second)
		require.GreaterOrEqual(t, jittered, time.Second)
		require.Less(t, jittered, time.Second+jitterWindow)
	}
	require.Equal(t, time.Duration(0), withJitter(0))
}
