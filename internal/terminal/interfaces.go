package terminal

import (
	"context"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/types"
)

// orderAPI is the order store surface the gateway and reconciler depend on.
type orderAPI interface {
	CreateOrder(ctx context.Context, input orders.CreateInput) (*types.OrderView, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error)
	AppendItems(ctx context.Context, orderID uuid.UUID, input orders.AppendItemsInput) (*types.OrderView, error)
	Send(ctx context.Context, orderID uuid.UUID, input orders.SendInput, idempotencyKey string) (*types.OrderView, error)
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, input orders.DiscountInput) (*types.OrderView, error)
	CompVoid(ctx context.Context, orderID uuid.UUID, input orders.CompVoidInput) (*types.OrderView, error)
	Pay(ctx context.Context, orderID uuid.UUID, input orders.PayInput, idempotencyKey string) (*types.OrderView, error)
}

// cardAPI is the card-on-file surface used by tab verification.
type cardAPI interface {
	ListCards(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error)
	IncreaseAuthorization(ctx context.Context, orderID uuid.UUID, amountCents int) (*types.ReauthResult, error)
}

// ticketPrinter submits a print side effect. Queued reports whether the job
// was deferred to the retry queue instead of printed immediately.
type ticketPrinter interface {
	Submit(ctx context.Context, orderID string, ticketType enums.TicketType) (queued bool, err error)
}
