package enums

// OrderKind selects the validation policy applied before a send.
type OrderKind string

const (
	OrderKindDineIn  OrderKind = "dine_in"
	OrderKindBarTab  OrderKind = "bar_tab"
	OrderKindTakeout OrderKind = "takeout"
)

// RequiresTable reports whether a table assignment must exist before sending.
func (k OrderKind) RequiresTable() bool {
	return k == OrderKindDineIn
}

// RequiresTabName reports whether a customer/tab name must exist before sending.
func (k OrderKind) RequiresTabName() bool {
	return k == OrderKindBarTab
}

// RequiresPaymentBeforeSend reports whether the order must be paid before the
// kitchen ticket fires.
func (k OrderKind) RequiresPaymentBeforeSend() bool {
	return k == OrderKindTakeout
}
