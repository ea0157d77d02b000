package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemModifier records a per-item modifier line.
type ItemModifier struct {
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
}

// OrderItem is one line of an order, priced in cents.
type OrderItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	Name           string         `gorm:"column:name;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Qty            int            `gorm:"column:qty;not null;default:1"`
	Modifiers      []ItemModifier `gorm:"column:modifiers;type:jsonb;serializer:json"`
	Voided         bool           `gorm:"column:voided;not null;default:false"`
	VoidReason     *string        `gorm:"column:void_reason"`
	Notes          *string        `gorm:"column:notes"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalCents returns the priced total for the item including modifiers.
// Voided items contribute nothing.
func (i OrderItem) LineTotalCents() int {
	if i.Voided {
		return 0
	}
	total := i.UnitPriceCents
	for _, m := range i.Modifiers {
		total += m.PriceCents
	}
	return total * i.Qty
}
