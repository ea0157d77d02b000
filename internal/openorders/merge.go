package openorders

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

// Event is one order lifecycle notification from the broadcast channel.
type Event struct {
	EventID string
	Type    enums.OutboxEventType
	Seq     int64
	Order   types.OpenOrder
}

// State is the open-orders view. Merge never mutates its input; callers
// replace their state with the returned value.
type State struct {
	Orders  []types.OpenOrder
	Applied map[string]bool
	Stale   bool
}

// NewState returns an empty view.
func NewState() State {
	return State{Applied: map[string]bool{}}
}

// Reset replaces the view with an authoritative order list, clearing the
// stale flag and the applied-event history.
func Reset(orders []types.OpenOrder) State {
	next := NewState()
	next.Orders = append([]types.OpenOrder(nil), orders...)
	sortOrders(next.Orders)
	return next
}

// MarkStale flags the view as possibly missing events, typically after a
// broadcast reconnect. The view keeps serving until a refetch lands.
func MarkStale(state State) State {
	next := cloneState(state)
	next.Stale = true
	return next
}

// Merge folds a broadcast event into the view. The channel delivers
// at-least-once, so every branch is idempotent: duplicate events are dropped
// by event id, and snapshots older than what the view already holds are
// dropped by per-order sequence.
func Merge(state State, evt Event) State {
	if evt.EventID != "" && state.Applied[evt.EventID] {
		return state
	}

	next := cloneState(state)
	if evt.EventID != "" {
		next.Applied[evt.EventID] = true
	}

	switch evt.Type {
	case enums.EventOrderCreated:
		if idx := indexOf(next.Orders, evt.Order.ID); idx >= 0 {
			return next
		}
		next.Orders = append([]types.OpenOrder{evt.Order}, next.Orders...)
	case enums.EventOrderUpdated:
		idx := indexOf(next.Orders, evt.Order.ID)
		if idx >= 0 {
			if evt.Order.Seq <= next.Orders[idx].Seq {
				return next
			}
			next.Orders[idx] = evt.Order
		} else {
			// Created and updated events can arrive out of order; an update
			// for an unknown id still carries the full projection.
			next.Orders = append(next.Orders, evt.Order)
		}
		sortOrders(next.Orders)
	case enums.EventOrderClosed:
		idx := indexOf(next.Orders, evt.Order.ID)
		if idx < 0 {
			return next
		}
		next.Orders = append(next.Orders[:idx], next.Orders[idx+1:]...)
	}

	return next
}

func cloneState(state State) State {
	next := State{
		Orders:  append([]types.OpenOrder(nil), state.Orders...),
		Applied: make(map[string]bool, len(state.Applied)+1),
		Stale:   state.Stale,
	}
	for id := range state.Applied {
		next.Applied[id] = true
	}
	return next
}

func indexOf(orders []types.OpenOrder, id uuid.UUID) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

// sortOrders keeps every terminal's list in the same order for the same event
// set: most recently updated first, id ascending on ties.
func sortOrders(orders []types.OpenOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].UpdatedAt.Equal(orders[j].UpdatedAt) {
			return orders[i].UpdatedAt.After(orders[j].UpdatedAt)
		}
		return orders[i].ID.String() < orders[j].ID.String()
	})
}
