package enums

// TicketType identifies which physical ticket a print request targets.
type TicketType string

const (
	TicketTypeKitchen TicketType = "kitchen"
	TicketTypeReceipt TicketType = "receipt"
	TicketTypeSplit   TicketType = "split"
)

// PaymentMethod is the tender used to settle an order or split check.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

// CardAuthStatus tracks a card-on-file authorization.
type CardAuthStatus string

const (
	CardAuthStatusAuthorized CardAuthStatus = "authorized"
	CardAuthStatusCaptured   CardAuthStatus = "captured"
	CardAuthStatusVoided     CardAuthStatus = "voided"
)
