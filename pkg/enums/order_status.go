package enums

// OrderStatus tracks an order through its lifecycle. A draft order exists only
// on the terminal that is building it; every other status is server-assigned.
type OrderStatus string

const (
	OrderStatusDraft  OrderStatus = "draft"
	OrderStatusSent   OrderStatus = "sent"
	OrderStatusSplit  OrderStatus = "split"
	OrderStatusPaid   OrderStatus = "paid"
	OrderStatusClosed OrderStatus = "closed"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusClosed
}
