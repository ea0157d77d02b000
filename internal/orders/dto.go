package orders

import (
	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

// ItemInput is one order line submitted by a terminal.
type ItemInput struct {
	Name           string               `json:"name" validate:"required"`
	UnitPriceCents int                  `json:"unit_price_cents" validate:"gte=0"`
	Qty            int                  `json:"qty" validate:"gte=1"`
	Modifiers      []types.ItemModifier `json:"modifiers,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
}

// CreateInput captures the first network-visible action on a local order.
// DraftAnchor is the terminal's draft id; the unique index on it makes a
// replayed create converge on the already-persisted row.
type CreateInput struct {
	LocationID  uuid.UUID       `json:"location_id" validate:"required"`
	Kind        enums.OrderKind `json:"kind" validate:"required,oneof=dine_in bar_tab takeout"`
	DraftAnchor string          `json:"draft_anchor" validate:"required"`
	TerminalID  string          `json:"terminal_id,omitempty"`
	EmployeeID  *uuid.UUID      `json:"employee_id,omitempty"`
	TabName     *string         `json:"tab_name,omitempty"`
	TableNumber *string         `json:"table_number,omitempty"`
	Items       []ItemInput     `json:"items" validate:"dive"`
}

// AppendItemsInput adds lines to a persisted order.
type AppendItemsInput struct {
	OrderID uuid.UUID   `json:"-"`
	Items   []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// SendInput fires the kitchen ticket for a persisted order.
type SendInput struct {
	OrderID    uuid.UUID  `json:"-"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	TerminalID string     `json:"terminal_id,omitempty"`
}

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeAmount  DiscountType = "amount"
)

// DiscountInput applies a discount server-side; the response carries the
// recomputed authoritative totals.
type DiscountInput struct {
	OrderID uuid.UUID    `json:"-"`
	Type    DiscountType `json:"type" validate:"required,oneof=percent amount"`
	// Value is a percentage (0-100) for percent discounts, cents for amount.
	Value      int        `json:"value" validate:"gte=0"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
}

// CompVoidInput voids a line item off the check.
type CompVoidInput struct {
	OrderID    uuid.UUID  `json:"-"`
	ItemID     uuid.UUID  `json:"item_id" validate:"required"`
	Reason     string     `json:"reason" validate:"required"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
}

// PayInput settles an order or split check.
type PayInput struct {
	OrderID    uuid.UUID           `json:"-"`
	Method     enums.PaymentMethod `json:"method" validate:"required,oneof=cash card"`
	EmployeeID *uuid.UUID          `json:"employee_id,omitempty"`
}

// EvenSplitInput divides an order into n equal checks.
type EvenSplitInput struct {
	OrderID uuid.UUID `json:"-"`
	Ways    int       `json:"ways" validate:"required,gte=2,lte=20"`
}

// PayAllSplitsInput pays every open child of a parent order.
type PayAllSplitsInput struct {
	ParentID   uuid.UUID           `json:"-"`
	Method     enums.PaymentMethod `json:"method" validate:"required,oneof=cash card"`
	EmployeeID *uuid.UUID          `json:"employee_id,omitempty"`
}

// OpenOrderList wraps the paginated open orders plus the next page cursor.
type OpenOrderList struct {
	Orders     []types.OpenOrder `json:"orders"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func toItemView(item models.OrderItem) types.OrderItemView {
	mods := make([]types.ItemModifier, 0, len(item.Modifiers))
	for _, m := range item.Modifiers {
		mods = append(mods, types.ItemModifier{Name: m.Name, PriceCents: m.PriceCents})
	}
	return types.OrderItemView{
		ID:             item.ID,
		Name:           item.Name,
		UnitPriceCents: item.UnitPriceCents,
		Qty:            item.Qty,
		Modifiers:      mods,
		Voided:         item.Voided,
		VoidReason:     item.VoidReason,
		Notes:          item.Notes,
	}
}

func toOrderView(order models.Order, items []models.OrderItem, children []models.Order, auth *models.CardAuthorization) types.OrderView {
	view := types.OrderView{
		ID:            order.ID,
		LocationID:    order.LocationID,
		Kind:          order.Kind,
		Status:        order.Status,
		TabName:       order.TabName,
		TableNumber:   order.TableNumber,
		DisplayLabel:  order.DisplayLabel,
		ParentID:      order.ParentID,
		Seq:           order.Seq,
		SubtotalCents: order.SubtotalCents,
		TaxCents:      order.TaxCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		Items:         make([]types.OrderItemView, 0, len(items)),
		SentAt:        order.SentAt,
		PaidAt:        order.PaidAt,
		ClosedAt:      order.ClosedAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range items {
		view.Items = append(view.Items, toItemView(item))
	}
	for _, child := range children {
		label := ""
		if child.DisplayLabel != nil {
			label = *child.DisplayLabel
		}
		view.Splits = append(view.Splits, types.SplitView{
			ID:           child.ID,
			DisplayLabel: label,
			Paid:         child.Status.Terminal(),
			TotalCents:   child.TotalCents,
		})
	}
	if auth != nil {
		view.Card = &types.CardSummary{
			AuthorizationID: auth.ID,
			Cardholder:      auth.Cardholder,
			Brand:           auth.Brand,
			Last4:           auth.Last4,
			AuthorizedCents: auth.AuthorizedCents,
			Status:          auth.Status,
		}
	}
	return view
}

func toOpenOrder(order models.Order, itemCount int) types.OpenOrder {
	return types.OpenOrder{
		ID:           order.ID,
		LocationID:   order.LocationID,
		Kind:         order.Kind,
		Status:       order.Status,
		TabName:      order.TabName,
		TableNumber:  order.TableNumber,
		DisplayLabel: order.DisplayLabel,
		TotalCents:   order.TotalCents,
		ItemCount:    itemCount,
		Seq:          order.Seq,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}
