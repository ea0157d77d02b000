package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
)

// Order is the authoritative record for a committed order. A row exists here
// from the first network-visible action onward; it stays in draft status until
// the kitchen send fires.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LocationID   uuid.UUID         `gorm:"column:location_id;type:uuid;not null;index"`
	Kind         enums.OrderKind   `gorm:"column:kind;type:text;not null;default:'dine_in'"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	TabName      *string           `gorm:"column:tab_name"`
	TableNumber  *string           `gorm:"column:table_number"`
	EmployeeID   *uuid.UUID        `gorm:"column:employee_id;type:uuid"`
	TerminalID   *string           `gorm:"column:terminal_id"`
	DraftAnchor  *string           `gorm:"column:draft_anchor;uniqueIndex:ux_orders_draft_anchor"`
	ParentID     *uuid.UUID        `gorm:"column:parent_id;type:uuid;index"`
	DisplayLabel *string           `gorm:"column:display_label"`

	// Seq increments on every mutation and orders broadcast events for a
	// single order. Consumers drop snapshots with a seq at or below the one
	// they already applied.
	Seq int64 `gorm:"column:seq;not null;default:1"`

	SubtotalCents int `gorm:"column:subtotal_cents;not null;default:0"`
	TaxCents      int `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int `gorm:"column:total_cents;not null;default:0"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	SentAt   *time.Time `gorm:"column:sent_at"`
	PaidAt   *time.Time `gorm:"column:paid_at"`
	ClosedAt *time.Time `gorm:"column:closed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
