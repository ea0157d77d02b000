package terminal

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

const draftIDPrefix = "draft-"

// NewDraftID mints a local order identifier that is never sent to the server
// as a primary key; it only travels as the create call's draft anchor.
func NewDraftID() string {
	return draftIDPrefix + uuid.NewString()
}

// IsDraftID reports whether an identifier is a local draft id.
func IsDraftID(id string) bool {
	return len(id) > len(draftIDPrefix) && id[:len(draftIDPrefix)] == draftIDPrefix
}

// PendingOpKind names the continuation waiting on the item editor. Modeling
// this as an enum instead of a stored callback makes an overwritten or
// forgotten continuation impossible.
type PendingOpKind int

const (
	PendingNone PendingOpKind = iota
	PendingNewItem
	PendingEditItem
)

// PendingOp is the single pending editor continuation for the order.
type PendingOp struct {
	Kind      PendingOpKind
	ItemIndex int
}

// LocalItem is one cart line owned by the terminal.
type LocalItem struct {
	Name           string
	UnitPriceCents int
	Qty            int
	Modifiers      []types.ItemModifier
	Notes          *string
}

func (i LocalItem) lineTotalCents() int {
	total := i.UnitPriceCents
	for _, m := range i.Modifiers {
		total += m.PriceCents
	}
	qty := i.Qty
	if qty < 1 {
		qty = 1
	}
	return total * qty
}

// Snapshot is an immutable copy of the order taken under the lock, used to
// build request payloads without holding the lock across network calls.
type Snapshot struct {
	DraftID     string
	PersistedID uuid.UUID
	Generation  uint64
	LocationID  uuid.UUID
	Kind        enums.OrderKind
	Status      enums.OrderStatus
	TabName     *string
	TableNumber *string
	Items       []LocalItem
	Seq         int64

	SubtotalCents int
	TaxCents      int
	DiscountCents int
	TotalCents    int

	Card *types.CardSummary
}

// Persisted reports whether the server has assigned a stable id.
func (s Snapshot) Persisted() bool {
	return s.PersistedID != uuid.Nil
}

// CurrentID returns the id the order is known by right now: the persisted id
// when one exists, otherwise the draft id.
func (s Snapshot) CurrentID() string {
	if s.Persisted() {
		return s.PersistedID.String()
	}
	return s.DraftID
}

// LocalOrder is the single-writer in-memory order for this terminal. Every
// mutation goes through a method so the generation and sequence rules cannot
// be bypassed; the zero value is not usable, construct with NewLocalOrder.
type LocalOrder struct {
	mu sync.Mutex

	draftID     string
	persistedID uuid.UUID
	locationID  uuid.UUID
	kind        enums.OrderKind
	status      enums.OrderStatus
	tabName     *string
	tableNumber *string
	items       []LocalItem
	pending     PendingOp
	card        *types.CardSummary

	subtotalCents int
	taxCents      int
	discountCents int
	totalCents    int

	// generation advances when the operator abandons the current cart. An
	// in-flight response captured under an older generation is discarded
	// instead of merging into an unrelated order.
	generation uint64

	// seq is the highest authoritative sequence applied so far; older
	// responses lose by arrival.
	seq int64

	// idHistory maps retired draft ids to the persisted ids that replaced
	// them, so queued side effects can resolve a captured draft id later.
	idHistory map[string]uuid.UUID
}

// NewLocalOrder starts an empty draft order for the location.
func NewLocalOrder(locationID uuid.UUID, kind enums.OrderKind) *LocalOrder {
	return &LocalOrder{
		draftID:    NewDraftID(),
		locationID: locationID,
		kind:       kind,
		status:     enums.OrderStatusDraft,
		idHistory:  map[string]uuid.UUID{},
	}
}

// RestoreLocalOrder rebuilds a staged draft under its original draft id, so a
// create replayed after a restart still converges on the same anchor.
func RestoreLocalOrder(draftID string, locationID uuid.UUID, kind enums.OrderKind, tabName, tableNumber *string, items []LocalItem) *LocalOrder {
	if !IsDraftID(draftID) {
		draftID = NewDraftID()
	}
	o := &LocalOrder{
		draftID:     draftID,
		locationID:  locationID,
		kind:        kind,
		status:      enums.OrderStatusDraft,
		tabName:     cloneString(tabName),
		tableNumber: cloneString(tableNumber),
		items:       append([]LocalItem(nil), items...),
		idHistory:   map[string]uuid.UUID{},
	}
	o.recomputeLocked()
	return o
}

// AddItem appends a cart line and recomputes the optimistic totals.
func (o *LocalOrder) AddItem(item LocalItem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if item.Qty < 1 {
		item.Qty = 1
	}
	o.items = append(o.items, item)
	o.recomputeLocked()
}

// UpdateItem replaces the cart line at index.
func (o *LocalOrder) UpdateItem(index int, item LocalItem) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.items) {
		return fmt.Errorf("item index %d out of range", index)
	}
	if item.Qty < 1 {
		item.Qty = 1
	}
	o.items[index] = item
	o.recomputeLocked()
	return nil
}

// SetPending records the editor continuation. Starting a new one while
// another is pending is rejected so a continuation can never be silently
// overwritten.
func (o *LocalOrder) SetPending(op PendingOp) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending.Kind != PendingNone && op.Kind != PendingNone {
		return fmt.Errorf("an item editor operation is already pending")
	}
	o.pending = op
	return nil
}

// TakePending returns and clears the pending continuation.
func (o *LocalOrder) TakePending() PendingOp {
	o.mu.Lock()
	defer o.mu.Unlock()
	op := o.pending
	o.pending = PendingOp{}
	return op
}

// SetTable links the order to a table.
func (o *LocalOrder) SetTable(tableNumber string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tableNumber = &tableNumber
}

// SetTabName names the tab.
func (o *LocalOrder) SetTabName(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tabName = &name
}

// SetOptimisticCard records the card summary shown before the server has
// verified it. The reconciler replaces it with the authoritative value.
func (o *LocalOrder) SetOptimisticCard(card types.CardSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.card = &card
}

// Snapshot copies the order state for use outside the lock.
func (o *LocalOrder) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		DraftID:       o.draftID,
		PersistedID:   o.persistedID,
		Generation:    o.generation,
		LocationID:    o.locationID,
		Kind:          o.kind,
		Status:        o.status,
		TabName:       cloneString(o.tabName),
		TableNumber:   cloneString(o.tableNumber),
		Items:         append([]LocalItem(nil), o.items...),
		Seq:           o.seq,
		SubtotalCents: o.subtotalCents,
		TaxCents:      o.taxCents,
		DiscountCents: o.discountCents,
		TotalCents:    o.totalCents,
		Card:          cloneCard(o.card),
	}
}

// Generation returns the current cart generation.
func (o *LocalOrder) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// Clear abandons the current cart and starts a fresh draft. Responses issued
// against the old generation will be discarded on arrival.
func (o *LocalOrder) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	o.draftID = NewDraftID()
	o.persistedID = uuid.Nil
	o.status = enums.OrderStatusDraft
	o.tabName = nil
	o.tableNumber = nil
	o.items = nil
	o.pending = PendingOp{}
	o.card = nil
	o.seq = 0
	o.subtotalCents, o.taxCents, o.discountCents, o.totalCents = 0, 0, 0, 0
}

// AdoptPersistedID swaps the draft id for the server-assigned id. The swap is
// recorded so anything that captured the draft id can resolve it later.
func (o *LocalOrder) AdoptPersistedID(generation uint64, id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if generation != o.generation {
		return false
	}
	if o.persistedID != uuid.Nil {
		return o.persistedID == id
	}
	o.persistedID = id
	o.idHistory[o.draftID] = id
	return true
}

// ResolveID maps an id captured earlier to the order's current persisted id.
// A retired draft id resolves through the swap history; anything else returns
// unchanged.
func (o *LocalOrder) ResolveID(captured string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if persisted, ok := o.idHistory[captured]; ok {
		return persisted.String()
	}
	if captured == o.draftID && o.persistedID != uuid.Nil {
		return o.persistedID.String()
	}
	return captured
}

// ApplyAuthoritative merges a server order view into the local state. It
// returns false without touching anything when the response was issued for an
// abandoned cart generation or carries a sequence at or below the last one
// applied (last-arrival-wins).
func (o *LocalOrder) ApplyAuthoritative(generation uint64, view *types.OrderView) bool {
	if view == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if generation != o.generation {
		return false
	}
	if view.Seq <= o.seq {
		return false
	}

	o.persistedID = view.ID
	o.status = view.Status
	o.tabName = cloneString(view.TabName)
	o.tableNumber = cloneString(view.TableNumber)
	o.seq = view.Seq
	o.subtotalCents = view.SubtotalCents
	o.taxCents = view.TaxCents
	o.discountCents = view.DiscountCents
	o.totalCents = view.TotalCents
	o.card = cloneCard(view.Card)

	items := make([]LocalItem, 0, len(view.Items))
	for _, item := range view.Items {
		if item.Voided {
			continue
		}
		items = append(items, LocalItem{
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			Modifiers:      append([]types.ItemModifier(nil), item.Modifiers...),
			Notes:          cloneString(item.Notes),
		})
	}
	o.items = items
	return true
}

// recomputeLocked refreshes the optimistic totals. Tax and discount stay at
// their last authoritative values; the server recomputes them on the next
// pricing mutation.
func (o *LocalOrder) recomputeLocked() {
	subtotal := 0
	for _, item := range o.items {
		subtotal += item.lineTotalCents()
	}
	o.subtotalCents = subtotal
	o.totalCents = subtotal + o.taxCents - o.discountCents
	if o.totalCents < 0 {
		o.totalCents = 0
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneCard(c *types.CardSummary) *types.CardSummary {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
