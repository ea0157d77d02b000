package terminal

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mvharris/tabwire/internal/orders"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
)

// Gateway turns the local order into a persisted server order exactly once.
// Concurrent callers racing to persist the same draft share one in-flight
// create through a single-flight group keyed by draft id.
type Gateway struct {
	order      *LocalOrder
	client     orderAPI
	reconciler *Reconciler
	logg       *logger.Logger
	employeeID *uuid.UUID
	terminalID string

	createGroup singleflight.Group
}

// GatewayParams groups the gateway dependencies.
type GatewayParams struct {
	Order      *LocalOrder
	Client     orderAPI
	Reconciler *Reconciler
	Logger     *logger.Logger
	EmployeeID *uuid.UUID
	TerminalID string
}

// NewGateway validates dependencies and builds the commit gateway.
func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "local order required")
	}
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order client required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Gateway{
		order:      params.Order,
		client:     params.Client,
		reconciler: params.Reconciler,
		logg:       params.Logger,
		employeeID: params.EmployeeID,
		terminalID: params.TerminalID,
	}, nil
}

// EnsurePersisted returns the order's persisted id, creating the server order
// if it does not exist yet. A persisted order returns immediately with no
// network call. A draft issues exactly one create request shared by every
// concurrent caller; on success the draft id is swapped for the persisted id
// in the local state and the reconciler cache. On failure the cart stays in
// draft and the caller may retry.
func (g *Gateway) EnsurePersisted(ctx context.Context) (uuid.UUID, error) {
	snap := g.order.Snapshot()
	if snap.Persisted() {
		return snap.PersistedID, nil
	}

	result, err, _ := g.createGroup.Do(snap.DraftID, func() (any, error) {
		// Re-check under the guard: a sibling caller may have completed the
		// swap while this one was queued.
		current := g.order.Snapshot()
		if current.Persisted() {
			return current.PersistedID, nil
		}
		return g.create(ctx, current)
	})
	if err != nil {
		if pkgerrors.IsRetryable(err) || pkgerrors.IsStale(err) {
			return uuid.Nil, err
		}
		// The create path is exhausted; proceeding would risk an order that
		// exists nowhere durable.
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "order could not be persisted")
	}
	return result.(uuid.UUID), nil
}

func (g *Gateway) create(ctx context.Context, snap Snapshot) (uuid.UUID, error) {
	input := orders.CreateInput{
		LocationID:  snap.LocationID,
		Kind:        snap.Kind,
		DraftAnchor: snap.DraftID,
		TerminalID:  g.terminalID,
		EmployeeID:  g.employeeID,
		TabName:     snap.TabName,
		TableNumber: snap.TableNumber,
		Items:       toItemInputs(snap.Items),
	}

	view, err := g.client.CreateOrder(ctx, input)
	if err != nil {
		return uuid.Nil, err
	}

	if !g.order.AdoptPersistedID(snap.Generation, view.ID) {
		// The operator abandoned the cart while the create was in flight.
		// The server row exists, but it must not merge into the new cart.
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeStale, "order context changed during create")
	}
	g.reconciler.SwapID(snap.DraftID, view.ID)
	g.reconciler.Observe(view.ID, view.Seq)
	g.order.ApplyAuthoritative(snap.Generation, view)

	logCtx := g.logg.WithOrderID(ctx, view.ID.String())
	logCtx = g.logg.WithField(logCtx, "draft_id", snap.DraftID)
	g.logg.Info(logCtx, "order persisted")
	return view.ID, nil
}

func toItemInputs(items []LocalItem) []orders.ItemInput {
	inputs := make([]orders.ItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, orders.ItemInput{
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			Modifiers:      item.Modifiers,
			Notes:          item.Notes,
		})
	}
	return inputs
}
