package terminal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/metrics"
	"github.com/mvharris/tabwire/pkg/types"
)

// Reconciler fetches authoritative order state and overwrites optimistic
// local fields. Concurrent reconciles for the same order are safe: each
// response carries the order's sequence number, and a response whose sequence
// is at or below the last applied one is dropped regardless of call order.
type Reconciler struct {
	orderClient orderAPI
	cardClient  cardAPI
	order       *LocalOrder
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics

	mu          sync.Mutex
	lastApplied map[string]int64
}

// NewReconciler builds the reconciler around the terminal's local order.
func NewReconciler(orderClient orderAPI, cardClient cardAPI, order *LocalOrder, logg *logger.Logger, syncMetrics *metrics.SyncMetrics) (*Reconciler, error) {
	if orderClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order client required")
	}
	if cardClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card client required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "local order required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Reconciler{
		orderClient: orderClient,
		cardClient:  cardClient,
		order:       order,
		logg:        logg,
		metrics:     syncMetrics,
		lastApplied: map[string]int64{},
	}, nil
}

// Reconcile fetches the order and applies it if it is newer than anything
// seen so far. Returns the fetched view when it was applied, nil when it was
// dropped as stale.
func (r *Reconciler) Reconcile(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error) {
	generation := r.order.Generation()

	view, err := r.orderClient.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !r.noteApplied(orderID.String(), view.Seq) {
		r.metrics.IncStaleDrop()
		logCtx := r.logg.WithOrderID(ctx, orderID.String())
		logCtx = r.logg.WithField(logCtx, "seq", view.Seq)
		r.logg.Info(logCtx, "reconcile response dropped as stale")
		return nil, nil
	}

	// The local order only merges the view when it still belongs to the
	// cart generation the fetch was issued for.
	r.order.ApplyAuthoritative(generation, view)
	return view, nil
}

// Observe records an authoritative view obtained through another path (a
// mutation response or a broadcast event) so a slower reconcile fetch cannot
// roll it back.
func (r *Reconciler) Observe(orderID uuid.UUID, seq int64) {
	r.noteApplied(orderID.String(), seq)
}

// SwapID migrates the applied-sequence record from a retired draft id to the
// persisted id that replaced it.
func (r *Reconciler) SwapID(draftID string, persistedID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq, ok := r.lastApplied[draftID]; ok {
		delete(r.lastApplied, draftID)
		if seq > r.lastApplied[persistedID.String()] {
			r.lastApplied[persistedID.String()] = seq
		}
	}
}

// VerifyTabCard confirms an optimistic card summary against the server after
// a tab send: fetch the card-on-file list, adopt the authorized entry, then
// request the re-authorization increase. Any failure keeps the optimistic
// value and reports a degraded, retryable condition; it never blocks the
// send that triggered it.
func (r *Reconciler) VerifyTabCard(ctx context.Context, orderID uuid.UUID, increaseCents int) error {
	logCtx := r.logg.WithOrderID(ctx, orderID.String())

	cards, err := r.cardClient.ListCards(ctx, orderID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "tab card verification failed, keeping optimistic card")
		return pkgerrors.Wrap(pkgerrors.CodeDegraded, err, "card verification deferred")
	}

	verified := pickAuthorized(cards)
	if verified == nil {
		r.logg.Warn(logCtx, "no authorized card on file, keeping optimistic card")
		return pkgerrors.New(pkgerrors.CodeDegraded, "card verification deferred")
	}
	r.order.SetOptimisticCard(*verified)

	if increaseCents <= 0 {
		return nil
	}

	result, err := r.cardClient.IncreaseAuthorization(ctx, orderID, increaseCents)
	if err != nil {
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "re-authorization increase failed, keeping optimistic amount")
		return pkgerrors.Wrap(pkgerrors.CodeDegraded, err, "re-authorization deferred")
	}
	if !result.Incremented {
		r.logg.Warn(r.logg.WithField(logCtx, "action", result.Action), "re-authorization increase rejected, keeping optimistic amount")
		return pkgerrors.New(pkgerrors.CodeDegraded, "re-authorization deferred")
	}

	updated := *verified
	updated.AuthorizedCents = result.NewAuthorizedCents
	r.order.SetOptimisticCard(updated)
	return nil
}

// noteApplied records seq for the order id and reports whether it advanced
// past the previously applied sequence.
func (r *Reconciler) noteApplied(orderID string, seq int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq <= r.lastApplied[orderID] {
		return false
	}
	r.lastApplied[orderID] = seq
	return true
}

func pickAuthorized(cards []types.CardSummary) *types.CardSummary {
	for i := range cards {
		if cards[i].Status == enums.CardAuthStatusAuthorized {
			return &cards[i]
		}
	}
	return nil
}
