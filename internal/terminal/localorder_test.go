package terminal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

func TestAddItemRecomputesOptimisticTotals(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})
	order.AddItem(LocalItem{
		Name:           "Fries",
		UnitPriceCents: 400,
		Qty:            2,
		Modifiers:      []types.ItemModifier{{Name: "Cheese", PriceCents: 100}},
	})

	snap := order.Snapshot()
	require.Equal(t, 2000, snap.SubtotalCents)
	require.Equal(t, 2000, snap.TotalCents)
	require.Equal(t, enums.OrderStatusDraft, snap.Status)
	require.False(t, snap.Persisted())
	require.True(t, IsDraftID(snap.DraftID))
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000})
	require.Equal(t, 1000, order.Snapshot().SubtotalCents)
}

func TestSetPendingRejectsOverwrite(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	require.NoError(t, order.SetPending(PendingOp{Kind: PendingNewItem}))
	require.Error(t, order.SetPending(PendingOp{Kind: PendingEditItem, ItemIndex: 0}))

	// Taking the continuation frees the slot.
	op := order.TakePending()
	require.Equal(t, PendingNewItem, op.Kind)
	require.NoError(t, order.SetPending(PendingOp{Kind: PendingEditItem, ItemIndex: 0}))
}

func TestApplyAuthoritativeDropsStaleAndForeignResponses(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	persistedID := uuid.New()
	generation := order.Generation()

	newer := viewFor(persistedID, 3, enums.OrderStatusSent)
	newer.TotalCents = 2200
	require.True(t, order.ApplyAuthoritative(generation, newer))
	require.Equal(t, 2200, order.Snapshot().TotalCents)

	// Same seq loses by arrival.
	rival := viewFor(persistedID, 3, enums.OrderStatusSent)
	rival.TotalCents = 9999
	require.False(t, order.ApplyAuthoritative(generation, rival))

	// Older seq loses by arrival.
	stale := viewFor(persistedID, 2, enums.OrderStatusSent)
	require.False(t, order.ApplyAuthoritative(generation, stale))

	// A response from an abandoned generation never merges.
	future := viewFor(persistedID, 10, enums.OrderStatusSent)
	require.False(t, order.ApplyAuthoritative(generation+1, future))
	require.Equal(t, 2200, order.Snapshot().TotalCents)
}

func TestApplyAuthoritativeExcludesVoidedItems(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	view := viewFor(uuid.New(), 2, enums.OrderStatusSent)
	view.Items = []types.OrderItemView{
		{Name: "Burger", UnitPriceCents: 1000, Qty: 1},
		{Name: "Fries", UnitPriceCents: 500, Qty: 1, Voided: true},
	}
	require.True(t, order.ApplyAuthoritative(order.Generation(), view))

	snap := order.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Burger", snap.Items[0].Name)
}

func TestClearAdvancesGenerationAndResets(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindBarTab)
	order.SetTabName("Regulars")
	order.AddItem(LocalItem{Name: "Pint", UnitPriceCents: 700, Qty: 2})
	oldDraft := order.Snapshot().DraftID
	oldGeneration := order.Generation()

	order.Clear()

	snap := order.Snapshot()
	require.Equal(t, oldGeneration+1, order.Generation())
	require.NotEqual(t, oldDraft, snap.DraftID)
	require.Nil(t, snap.TabName)
	require.Empty(t, snap.Items)
	require.Equal(t, int64(0), snap.Seq)
	require.Equal(t, 0, snap.TotalCents)

	// Adopting against the old generation is refused.
	require.False(t, order.AdoptPersistedID(oldGeneration, uuid.New()))
	require.False(t, order.Snapshot().Persisted())
}

func TestResolveIDFollowsSwapHistory(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	draftID := order.Snapshot().DraftID
	persistedID := uuid.New()

	require.Equal(t, draftID, order.ResolveID(draftID))
	require.True(t, order.AdoptPersistedID(order.Generation(), persistedID))

	require.Equal(t, persistedID.String(), order.ResolveID(draftID))
	require.Equal(t, persistedID.String(), order.ResolveID(persistedID.String()))
	require.Equal(t, "unrelated", order.ResolveID("unrelated"))

	// A retired draft id still resolves after the cart moves on.
	order.Clear()
	require.Equal(t, draftID, order.ResolveID(draftID))
}

func TestAdoptPersistedIDIsIdempotentForSameID(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	persistedID := uuid.New()
	generation := order.Generation()

	require.True(t, order.AdoptPersistedID(generation, persistedID))
	require.True(t, order.AdoptPersistedID(generation, persistedID))
	require.False(t, order.AdoptPersistedID(generation, uuid.New()))
	require.Equal(t, persistedID, order.Snapshot().PersistedID)
}

func TestRestoreLocalOrderKeepsDraftAnchor(t *testing.T) {
	locationID := uuid.New()
	table := "12"
	draftID := NewDraftID()
	items := []LocalItem{{Name: "Burger", UnitPriceCents: 1000, Qty: 2}}

	order := RestoreLocalOrder(draftID, locationID, enums.OrderKindDineIn, nil, &table, items)

	snap := order.Snapshot()
	require.Equal(t, draftID, snap.DraftID)
	require.Equal(t, locationID, snap.LocationID)
	require.Equal(t, "12", *snap.TableNumber)
	require.Equal(t, 2000, snap.SubtotalCents)
	require.Equal(t, enums.OrderStatusDraft, snap.Status)
}

func TestRestoreLocalOrderRejectsForeignID(t *testing.T) {
	order := RestoreLocalOrder("not-a-draft", uuid.New(), enums.OrderKindDineIn, nil, nil, nil)
	snap := order.Snapshot()
	require.True(t, IsDraftID(snap.DraftID))
	require.NotEqual(t, "not-a-draft", snap.DraftID)
}
