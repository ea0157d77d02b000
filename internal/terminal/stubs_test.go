package terminal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/types"
)

type stubOrderAPI struct {
	mu sync.Mutex

	createCalls int
	sendCalls   int
	payCalls    int

	createOrder   func(ctx context.Context, input orders.CreateInput) (*types.OrderView, error)
	getOrder      func(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error)
	send          func(ctx context.Context, orderID uuid.UUID, input orders.SendInput, key string) (*types.OrderView, error)
	pay           func(ctx context.Context, orderID uuid.UUID, input orders.PayInput, key string) (*types.OrderView, error)
	applyDiscount func(ctx context.Context, orderID uuid.UUID, input orders.DiscountInput) (*types.OrderView, error)
	compVoid      func(ctx context.Context, orderID uuid.UUID, input orders.CompVoidInput) (*types.OrderView, error)
	appendItems   func(ctx context.Context, orderID uuid.UUID, input orders.AppendItemsInput) (*types.OrderView, error)
}

func (s *stubOrderAPI) CreateOrder(ctx context.Context, input orders.CreateInput) (*types.OrderView, error) {
	s.mu.Lock()
	s.createCalls++
	s.mu.Unlock()
	return s.createOrder(ctx, input)
}

func (s *stubOrderAPI) GetOrder(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error) {
	return s.getOrder(ctx, orderID)
}

func (s *stubOrderAPI) AppendItems(ctx context.Context, orderID uuid.UUID, input orders.AppendItemsInput) (*types.OrderView, error) {
	return s.appendItems(ctx, orderID, input)
}

func (s *stubOrderAPI) Send(ctx context.Context, orderID uuid.UUID, input orders.SendInput, key string) (*types.OrderView, error) {
	s.mu.Lock()
	s.sendCalls++
	s.mu.Unlock()
	return s.send(ctx, orderID, input, key)
}

func (s *stubOrderAPI) ApplyDiscount(ctx context.Context, orderID uuid.UUID, input orders.DiscountInput) (*types.OrderView, error) {
	return s.applyDiscount(ctx, orderID, input)
}

func (s *stubOrderAPI) CompVoid(ctx context.Context, orderID uuid.UUID, input orders.CompVoidInput) (*types.OrderView, error) {
	return s.compVoid(ctx, orderID, input)
}

func (s *stubOrderAPI) Pay(ctx context.Context, orderID uuid.UUID, input orders.PayInput, key string) (*types.OrderView, error) {
	s.mu.Lock()
	s.payCalls++
	s.mu.Unlock()
	return s.pay(ctx, orderID, input, key)
}

type stubCardAPI struct {
	listCards func(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error)
	increase  func(ctx context.Context, orderID uuid.UUID, amountCents int) (*types.ReauthResult, error)
}

func (s *stubCardAPI) ListCards(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error) {
	return s.listCards(ctx, orderID)
}

func (s *stubCardAPI) IncreaseAuthorization(ctx context.Context, orderID uuid.UUID, amountCents int) (*types.ReauthResult, error) {
	return s.increase(ctx, orderID, amountCents)
}

type stubPrinter struct {
	mu      sync.Mutex
	calls   int
	queued  bool
	err     error
	tickets []enums.TicketType
}

func (s *stubPrinter) Submit(_ context.Context, _ string, ticketType enums.TicketType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.tickets = append(s.tickets, ticketType)
	return s.queued, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "terminal-test"})
}

// viewFor builds an authoritative view consistent with the given local order.
func viewFor(id uuid.UUID, seq int64, status enums.OrderStatus) *types.OrderView {
	return &types.OrderView{
		ID:     id,
		Kind:   enums.OrderKindDineIn,
		Status: status,
		Seq:    seq,
	}
}
