package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/enums"
)

// CardAuthorization is a card-on-file snapshot tied to an order. It is
// advisory on terminals; only the server mutates it.
type CardAuthorization struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	SquareCardID    string               `gorm:"column:square_card_id;not null"`
	SquarePaymentID string               `gorm:"column:square_payment_id"`
	Cardholder      string               `gorm:"column:cardholder"`
	Brand           string               `gorm:"column:brand"`
	Last4           string               `gorm:"column:last4"`
	AuthorizedCents int                  `gorm:"column:authorized_cents;not null;default:0"`
	Status          enums.CardAuthStatus `gorm:"column:status;type:text;not null;default:'authorized'"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
