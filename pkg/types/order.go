package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
)

// CardSummary is the advisory card-on-file snapshot attached to an order.
// Terminals may hold an optimistic copy; the authoritative value always comes
// from the server.
type CardSummary struct {
	AuthorizationID uuid.UUID            `json:"authorization_id"`
	Cardholder      string               `json:"cardholder,omitempty"`
	Brand           string               `json:"brand,omitempty"`
	Last4           string               `json:"last4"`
	AuthorizedCents int                  `json:"authorized_cents"`
	Status          enums.CardAuthStatus `json:"status"`
}

// OrderItemView is one order line on the wire.
type OrderItemView struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	UnitPriceCents int            `json:"unit_price_cents"`
	Qty            int            `json:"qty"`
	Modifiers      []ItemModifier `json:"modifiers,omitempty"`
	Voided         bool           `json:"voided"`
	VoidReason     *string        `json:"void_reason,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

// ItemModifier is a per-item modifier line on the wire.
type ItemModifier struct {
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
}

// SplitView is a child check summary shown on the parent order.
type SplitView struct {
	ID           uuid.UUID `json:"id"`
	DisplayLabel string    `json:"display_label"`
	Paid         bool      `json:"paid"`
	TotalCents   int       `json:"total_cents"`
}

// OrderView is the full authoritative order state served by get and returned
// from every pricing-affecting mutation.
type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	LocationID    uuid.UUID         `json:"location_id"`
	Kind          enums.OrderKind   `json:"kind"`
	Status        enums.OrderStatus `json:"status"`
	TabName       *string           `json:"tab_name,omitempty"`
	TableNumber   *string           `json:"table_number,omitempty"`
	DisplayLabel  *string           `json:"display_label,omitempty"`
	ParentID      *uuid.UUID        `json:"parent_id,omitempty"`
	Seq           int64             `json:"seq"`
	SubtotalCents int               `json:"subtotal_cents"`
	TaxCents      int               `json:"tax_cents"`
	DiscountCents int               `json:"discount_cents"`
	TotalCents    int               `json:"total_cents"`
	Items         []OrderItemView   `json:"items"`
	Splits        []SplitView       `json:"splits,omitempty"`
	Card          *CardSummary      `json:"card,omitempty"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OpenOrder is the lightweight projection used for the open-orders list and
// carried on broadcast events.
type OpenOrder struct {
	ID           uuid.UUID         `json:"id"`
	LocationID   uuid.UUID         `json:"location_id"`
	Kind         enums.OrderKind   `json:"kind"`
	Status       enums.OrderStatus `json:"status"`
	TabName      *string           `json:"tab_name,omitempty"`
	TableNumber  *string           `json:"table_number,omitempty"`
	DisplayLabel *string           `json:"display_label,omitempty"`
	TotalCents   int               `json:"total_cents"`
	ItemCount    int               `json:"item_count"`
	Seq          int64             `json:"seq"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// PayAllResult reports the outcome of paying every open split of a parent.
type PayAllResult struct {
	SplitsPaid       int  `json:"splits_paid"`
	TotalAmountCents int  `json:"total_amount_cents"`
	ParentClosed     bool `json:"parent_closed"`
}

// ReauthResult is the response of a re-authorization increase request. When
// the increase cannot be performed, Action carries "increment_failed" and the
// totals are left untouched.
type ReauthResult struct {
	Incremented        bool   `json:"incremented"`
	NewAuthorizedCents int    `json:"new_authorized_total,omitempty"`
	Action             string `json:"action,omitempty"`
}
