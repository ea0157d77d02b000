package terminal

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/types"
)

func newTestGateway(t *testing.T, api *stubOrderAPI, order *LocalOrder) (*Gateway, *Reconciler) {
	t.Helper()
	cards := &stubCardAPI{}
	reconciler, err := NewReconciler(api, cards, order, testLogger(), nil)
	require.NoError(t, err)
	gateway, err := NewGateway(GatewayParams{
		Order:      order,
		Client:     api,
		Reconciler: reconciler,
		Logger:     testLogger(),
		TerminalID: "term-1",
	})
	require.NoError(t, err)
	return gateway, reconciler
}

func TestEnsurePersistedCreatesOnce(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})

	persistedID := uuid.New()
	api := &stubOrderAPI{
		createOrder: func(_ context.Context, input orders.CreateInput) (*types.OrderView, error) {
			require.True(t, IsDraftID(input.DraftAnchor))
			require.Len(t, input.Items, 1)
			return viewFor(persistedID, 1, enums.OrderStatusDraft), nil
		},
	}
	gateway, _ := newTestGateway(t, api, order)

	id, err := gateway.EnsurePersisted(context.Background())
	require.NoError(t, err)
	require.Equal(t, persistedID, id)

	// A second call short-circuits on the adopted id.
	id, err = gateway.EnsurePersisted(context.Background())
	require.NoError(t, err)
	require.Equal(t, persistedID, id)
	require.Equal(t, 1, api.createCalls)
}

func TestEnsurePersistedCollapsesConcurrentCallers(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})

	persistedID := uuid.New()
	release := make(chan struct{})
	api := &stubOrderAPI{
		createOrder: func(context.Context, orders.CreateInput) (*types.OrderView, error) {
			<-release
			return viewFor(persistedID, 1, enums.OrderStatusDraft), nil
		},
	}
	gateway, _ := newTestGateway(t, api, order)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = gateway.EnsurePersisted(context.Background())
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, persistedID, ids[i])
	}
	require.Equal(t, 1, api.createCalls)
}

func TestEnsurePersistedKeepsDraftOnFailure(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})

	persistedID := uuid.New()
	fail := true
	api := &stubOrderAPI{
		createOrder: func(context.Context, orders.CreateInput) (*types.OrderView, error) {
			if fail {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
			}
			return viewFor(persistedID, 1, enums.OrderStatusDraft), nil
		},
	}
	gateway, _ := newTestGateway(t, api, order)

	_, err := gateway.EnsurePersisted(context.Background())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodePersistence, pkgerrors.CodeOf(err))
	require.False(t, order.Snapshot().Persisted())

	// The draft survives the failure and the next attempt succeeds.
	fail = false
	id, err := gateway.EnsurePersisted(context.Background())
	require.NoError(t, err)
	require.Equal(t, persistedID, id)
}

func TestEnsurePersistedPassesRetryableErrorsThrough(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})

	api := &stubOrderAPI{
		createOrder: func(context.Context, orders.CreateInput) (*types.OrderView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "order store unreachable")
		},
	}
	gateway, _ := newTestGateway(t, api, order)

	_, err := gateway.EnsurePersisted(context.Background())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	require.True(t, pkgerrors.IsRetryable(err))
}

func TestEnsurePersistedDiscardsAbandonedCart(t *testing.T) {
	order := NewLocalOrder(uuid.New(), enums.OrderKindDineIn)
	order.AddItem(LocalItem{Name: "Burger", UnitPriceCents: 1000, Qty: 1})

	persistedID := uuid.New()
	api := &stubOrderAPI{
		createOrder: func(context.Context, orders.CreateInput) (*types.OrderView, error) {
			// The operator clears the cart while the create is in flight.
			order.Clear()
			return viewFor(persistedID, 1, enums.OrderStatusDraft), nil
		},
	}
	gateway, _ := newTestGateway(t, api, order)

	_, err := gateway.EnsurePersisted(context.Background())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStale, pkgerrors.CodeOf(err))
	require.False(t, order.Snapshot().Persisted())
}
