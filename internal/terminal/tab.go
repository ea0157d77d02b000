package terminal

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/types"
)

// Tabs runs the bar tab opening flow. The card swiped at open time is shown
// optimistically; the reconciler confirms it against the server after the
// first send, and a failed confirmation degrades instead of blocking service.
type Tabs struct {
	order      *LocalOrder
	gateway    *Gateway
	reconciler *Reconciler
	logg       *logger.Logger
}

// NewTabs validates dependencies and builds the tab flow.
func NewTabs(order *LocalOrder, gateway *Gateway, reconciler *Reconciler, logg *logger.Logger) (*Tabs, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "local order required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway required")
	}
	if reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Tabs{order: order, gateway: gateway, reconciler: reconciler, logg: logg}, nil
}

// Open names the tab, records the swiped card optimistically, and persists the
// order so the tab shows up on other terminals right away.
func (t *Tabs) Open(ctx context.Context, name string, card *types.CardSummary) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "a tab name is required")
	}
	t.order.SetTabName(name)
	if card != nil {
		t.order.SetOptimisticCard(*card)
	}

	orderID, err := t.gateway.EnsurePersisted(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	logCtx := t.logg.WithOrderID(ctx, orderID.String())
	logCtx = t.logg.WithField(logCtx, "tab_name", name)
	t.logg.Info(logCtx, "tab opened")
	return orderID, nil
}

// VerifyCard confirms the optimistic card after a send and requests a
// re-authorization increase when the running total has grown past the
// authorized amount. A degraded result keeps the optimistic card on screen.
func (t *Tabs) VerifyCard(ctx context.Context) error {
	snap := t.order.Snapshot()
	if !snap.Persisted() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tab is not persisted yet")
	}

	increase := 0
	if snap.Card != nil && snap.TotalCents > snap.Card.AuthorizedCents {
		increase = snap.TotalCents - snap.Card.AuthorizedCents
	}
	return t.reconciler.VerifyTabCard(ctx, snap.PersistedID, increase)
}
