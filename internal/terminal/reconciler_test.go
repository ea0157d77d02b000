package terminal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/types"
)

func newTestReconciler(t *testing.T, api *stubOrderAPI, cards *stubCardAPI, order *LocalOrder) *Reconciler {
	t.Helper()
	reconciler, err := NewReconciler(api, cards, order, testLogger(), nil)
	require.NoError(t, err)
	return reconciler
}

func TestReconcileAppliesNewerState(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)

	fetched := viewFor(persistedID, 3, enums.OrderStatusSent)
	fetched.TotalCents = 2200
	api := &stubOrderAPI{
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			return fetched, nil
		},
	}
	reconciler := newTestReconciler(t, api, &stubCardAPI{}, order)

	view, err := reconciler.Reconcile(context.Background(), persistedID)
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, 2200, order.Snapshot().TotalCents)
	require.Equal(t, int64(3), order.Snapshot().Seq)
}

func TestReconcileDropsStaleResponse(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)

	api := &stubOrderAPI{
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			stale := viewFor(persistedID, 2, enums.OrderStatusSent)
			stale.TotalCents = 1100
			return stale, nil
		},
	}
	reconciler := newTestReconciler(t, api, &stubCardAPI{}, order)

	// A mutation response already applied seq 5.
	newer := viewFor(persistedID, 5, enums.OrderStatusSent)
	newer.TotalCents = 2200
	reconciler.Observe(persistedID, 5)
	order.ApplyAuthoritative(order.Generation(), newer)

	view, err := reconciler.Reconcile(context.Background(), persistedID)
	require.NoError(t, err)
	require.Nil(t, view)
	require.Equal(t, 2200, order.Snapshot().TotalCents)
}

func TestReconcileDiscardsAfterCartCleared(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)

	api := &stubOrderAPI{
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			// The operator starts a fresh cart while the fetch is in flight.
			order.Clear()
			return viewFor(persistedID, 9, enums.OrderStatusSent), nil
		},
	}
	reconciler := newTestReconciler(t, api, &stubCardAPI{}, order)

	_, err := reconciler.Reconcile(context.Background(), persistedID)
	require.NoError(t, err)
	require.False(t, order.Snapshot().Persisted())
	require.Equal(t, int64(0), order.Snapshot().Seq)
}

func TestSwapIDMigratesAppliedSeq(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	draftID := order.Snapshot().DraftID
	persistedID := uuid.New()

	api := &stubOrderAPI{
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			return viewFor(persistedID, 1, enums.OrderStatusDraft), nil
		},
	}
	reconciler := newTestReconciler(t, api, &stubCardAPI{}, order)

	reconciler.noteApplied(draftID, 4)
	reconciler.SwapID(draftID, persistedID)

	// Seq history survives the id swap: 4 is still applied.
	require.False(t, reconciler.noteApplied(persistedID.String(), 4))
	require.True(t, reconciler.noteApplied(persistedID.String(), 5))
}

func TestVerifyTabCardAdoptsAuthorizedCard(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindBarTab)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)
	order.SetOptimisticCard(types.CardSummary{Cardholder: "guess", AuthorizedCents: 2500})

	verified := types.CardSummary{
		AuthorizationID: uuid.New(),
		Cardholder:      "J. Doe",
		Brand:           "visa",
		Last4:           "4242",
		AuthorizedCents: 2500,
		Status:          enums.CardAuthStatusAuthorized,
	}
	cards := &stubCardAPI{
		listCards: func(context.Context, uuid.UUID) ([]types.CardSummary, error) {
			return []types.CardSummary{verified}, nil
		},
		increase: func(_ context.Context, _ uuid.UUID, amountCents int) (*types.ReauthResult, error) {
			return &types.ReauthResult{Incremented: true, NewAuthorizedCents: 2500 + amountCents}, nil
		},
	}
	reconciler := newTestReconciler(t, &stubOrderAPI{}, cards, order)

	err := reconciler.VerifyTabCard(context.Background(), persistedID, 500)
	require.NoError(t, err)

	card := order.Snapshot().Card
	require.NotNil(t, card)
	require.Equal(t, "J. Doe", card.Cardholder)
	require.Equal(t, 3000, card.AuthorizedCents)
}

func TestVerifyTabCardDegradesAndKeepsOptimistic(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindBarTab)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)
	optimistic := types.CardSummary{Cardholder: "optimistic", AuthorizedCents: 2500}
	order.SetOptimisticCard(optimistic)

	cards := &stubCardAPI{
		listCards: func(context.Context, uuid.UUID) ([]types.CardSummary, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "card service unreachable")
		},
	}
	reconciler := newTestReconciler(t, &stubOrderAPI{}, cards, order)

	err := reconciler.VerifyTabCard(context.Background(), persistedID, 500)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDegraded, pkgerrors.CodeOf(err))

	card := order.Snapshot().Card
	require.NotNil(t, card)
	require.Equal(t, "optimistic", card.Cardholder)
}

func TestVerifyTabCardDegradesOnRejectedIncrease(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindBarTab)
	persistedID := uuid.New()
	order.AdoptPersistedID(order.Generation(), persistedID)

	verified := types.CardSummary{
		Cardholder:      "J. Doe",
		AuthorizedCents: 2500,
		Status:          enums.CardAuthStatusAuthorized,
	}
	cards := &stubCardAPI{
		listCards: func(context.Context, uuid.UUID) ([]types.CardSummary, error) {
			return []types.CardSummary{verified}, nil
		},
		increase: func(context.Context, uuid.UUID, int) (*types.ReauthResult, error) {
			return &types.ReauthResult{Incremented: false, Action: "capture_existing"}, nil
		},
	}
	reconciler := newTestReconciler(t, &stubOrderAPI{}, cards, order)

	err := reconciler.VerifyTabCard(context.Background(), persistedID, 500)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDegraded, pkgerrors.CodeOf(err))

	// The verified card is kept at its confirmed amount.
	card := order.Snapshot().Card
	require.NotNil(t, card)
	require.Equal(t, 2500, card.AuthorizedCents)
}
