package openorders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

func openOrder(id uuid.UUID, seq int64, updatedAt time.Time) types.OpenOrder {
	return types.OpenOrder{
		ID:         id,
		LocationID: uuid.New(),
		Kind:       enums.OrderKindDineIn,
		Status:     enums.OrderStatusSent,
		Seq:        seq,
		UpdatedAt:  updatedAt,
	}
}

func TestMergeDropsDuplicateEvents(t *testing.T) {
	now := time.Now().UTC()
	evt := Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(uuid.New(), 1, now),
	}

	state := Merge(NewState(), evt)
	require.Len(t, state.Orders, 1)

	state = Merge(state, evt)
	require.Len(t, state.Orders, 1)
}

func TestMergeDropsStaleSnapshots(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()

	state := Merge(NewState(), Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(id, 1, now),
	})

	newer := openOrder(id, 3, now.Add(2*time.Second))
	newer.TotalCents = 2200
	state = Merge(state, Event{EventID: "evt-3", Type: enums.EventOrderUpdated, Seq: 3, Order: newer})

	stale := openOrder(id, 2, now.Add(time.Second))
	stale.TotalCents = 1100
	state = Merge(state, Event{EventID: "evt-2", Type: enums.EventOrderUpdated, Seq: 2, Order: stale})

	require.Len(t, state.Orders, 1)
	require.Equal(t, 2200, state.Orders[0].TotalCents)
	require.Equal(t, int64(3), state.Orders[0].Seq)
}

func TestMergeInsertsUpdateForUnknownOrder(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()

	// The update overtook its own created event; the snapshot still carries
	// the whole projection.
	state := Merge(NewState(), Event{
		EventID: "evt-2",
		Type:    enums.EventOrderUpdated,
		Seq:     2,
		Order:   openOrder(id, 2, now),
	})
	require.Len(t, state.Orders, 1)

	state = Merge(state, Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(id, 1, now.Add(-time.Second)),
	})
	require.Len(t, state.Orders, 1)
	require.Equal(t, int64(2), state.Orders[0].Seq)
}

func TestMergeRemovesClosedOrders(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()

	state := Merge(NewState(), Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(id, 1, now),
	})
	state = Merge(state, Event{
		EventID: "evt-2",
		Type:    enums.EventOrderClosed,
		Seq:     2,
		Order:   openOrder(id, 2, now),
	})
	require.Empty(t, state.Orders)

	// Closing an unknown order is silent.
	state = Merge(state, Event{
		EventID: "evt-3",
		Type:    enums.EventOrderClosed,
		Seq:     1,
		Order:   openOrder(uuid.New(), 1, now),
	})
	require.Empty(t, state.Orders)
}

func TestMergeOrderingIsDeterministic(t *testing.T) {
	now := time.Now().UTC()
	a := openOrder(uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), 1, now)
	b := openOrder(uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), 1, now)
	c := openOrder(uuid.New(), 1, now.Add(time.Second))

	events := []Event{
		{EventID: "a", Type: enums.EventOrderCreated, Seq: 1, Order: a},
		{EventID: "b", Type: enums.EventOrderCreated, Seq: 1, Order: b},
		{EventID: "c", Type: enums.EventOrderCreated, Seq: 1, Order: c},
	}

	forward := NewState()
	for _, evt := range events {
		forward = Merge(forward, evt)
	}
	backward := NewState()
	for i := len(events) - 1; i >= 0; i-- {
		backward = Merge(backward, events[i])
	}

	require.Equal(t, len(forward.Orders), len(backward.Orders))
	for i := range forward.Orders {
		require.Equal(t, forward.Orders[i].ID, backward.Orders[i].ID)
	}
	// Most recently updated first, id ascending on ties.
	require.Equal(t, c.ID, forward.Orders[0].ID)
	require.Equal(t, a.ID, forward.Orders[1].ID)
	require.Equal(t, b.ID, forward.Orders[2].ID)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	now := time.Now().UTC()
	base := Merge(NewState(), Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(uuid.New(), 1, now),
	})

	_ = Merge(base, Event{
		EventID: "evt-2",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(uuid.New(), 1, now),
	})

	require.Len(t, base.Orders, 1)
	require.Len(t, base.Applied, 1)
}

func TestResetClearsStaleFlag(t *testing.T) {
	now := time.Now().UTC()
	state := Merge(NewState(), Event{
		EventID: "evt-1",
		Type:    enums.EventOrderCreated,
		Seq:     1,
		Order:   openOrder(uuid.New(), 1, now),
	})
	state = MarkStale(state)
	require.True(t, state.Stale)

	fresh := []types.OpenOrder{
		openOrder(uuid.New(), 1, now),
		openOrder(uuid.New(), 2, now.Add(time.Second)),
	}
	state = Reset(fresh)
	require.False(t, state.Stale)
	require.Len(t, state.Orders, 2)
	require.Empty(t, state.Applied)
	require.Equal(t, fresh[1].ID, state.Orders[0].ID)
}
