package terminal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/types"
)

func newTestPayments(t *testing.T, api *stubOrderAPI, order *LocalOrder, printer *stubPrinter) *Payments {
	t.Helper()
	gateway, reconciler := newTestGateway(t, api, order)
	payments, err := NewPayments(PaymentsParams{
		Order:      order,
		Gateway:    gateway,
		Client:     api,
		Reconciler: reconciler,
		Printer:    printer,
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	return payments
}

func persistedOrder(t *testing.T) (*LocalOrder, uuid.UUID) {
	t.Helper()
	order := dineInOrder()
	persistedID := uuid.New()
	require.True(t, order.AdoptPersistedID(order.Generation(), persistedID))
	return order, persistedID
}

func TestPaySettlesAndPrintsReceipt(t *testing.T) {
	order, persistedID := persistedOrder(t)
	paid := viewFor(persistedID, 2, enums.OrderStatusPaid)
	api := &stubOrderAPI{
		pay: func(_ context.Context, _ uuid.UUID, input orders.PayInput, key string) (*types.OrderView, error) {
			if key == "" {
				t.Fatalf("pay issued without an idempotency key")
			}
			if input.Method != enums.PaymentMethodCard {
				t.Fatalf("unexpected payment method %q", input.Method)
			}
			return paid, nil
		},
	}
	printer := &stubPrinter{}
	payments := newTestPayments(t, api, order, printer)

	view, err := payments.Pay(context.Background(), enums.PaymentMethodCard)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, view.Status)
	require.Equal(t, enums.OrderStatusPaid, order.Snapshot().Status)
	require.Equal(t, []enums.TicketType{enums.TicketTypeReceipt}, printer.tickets)
}

func TestPayDegradesWhenReceiptQueued(t *testing.T) {
	order, persistedID := persistedOrder(t)
	api := &stubOrderAPI{
		pay: func(context.Context, uuid.UUID, orders.PayInput, string) (*types.OrderView, error) {
			return viewFor(persistedID, 2, enums.OrderStatusPaid), nil
		},
	}
	printer := &stubPrinter{queued: true}
	payments := newTestPayments(t, api, order, printer)

	view, err := payments.Pay(context.Background(), enums.PaymentMethodCash)
	require.NotNil(t, view)
	require.Equal(t, pkgerrors.CodeDegraded, pkgerrors.CodeOf(err))
	// The settlement stands even though the receipt is deferred.
	require.Equal(t, enums.OrderStatusPaid, order.Snapshot().Status)
}

func TestPayFailsBeforePrintingWhenSettlementFails(t *testing.T) {
	order, _ := persistedOrder(t)
	api := &stubOrderAPI{
		pay: func(context.Context, uuid.UUID, orders.PayInput, string) (*types.OrderView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment processor unreachable")
		},
	}
	printer := &stubPrinter{}
	payments := newTestPayments(t, api, order, printer)

	_, err := payments.Pay(context.Background(), enums.PaymentMethodCard)
	require.Error(t, err)
	require.Equal(t, 0, printer.calls)
	require.NotEqual(t, enums.OrderStatusPaid, order.Snapshot().Status)
}

func TestApplyDiscountRefreshesTotals(t *testing.T) {
	order, persistedID := persistedOrder(t)
	discounted := viewFor(persistedID, 2, enums.OrderStatusSent)
	discounted.SubtotalCents = 1000
	discounted.DiscountCents = 500
	discounted.TotalCents = 550
	api := &stubOrderAPI{
		applyDiscount: func(_ context.Context, _ uuid.UUID, input orders.DiscountInput) (*types.OrderView, error) {
			if input.Type != orders.DiscountTypePercent || input.Value != 50 {
				t.Fatalf("unexpected discount input %+v", input)
			}
			return discounted, nil
		},
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			return discounted, nil
		},
	}
	payments := newTestPayments(t, api, order, &stubPrinter{})

	view, err := payments.ApplyDiscount(context.Background(), orders.DiscountTypePercent, 50)
	require.NoError(t, err)
	require.Equal(t, 550, view.TotalCents)
	require.Equal(t, 550, order.Snapshot().TotalCents)
}

func TestCompVoidKeepsViewWhenReconcileFails(t *testing.T) {
	order, persistedID := persistedOrder(t)
	itemID := uuid.New()
	voided := viewFor(persistedID, 2, enums.OrderStatusSent)
	voided.TotalCents = 1100
	api := &stubOrderAPI{
		compVoid: func(_ context.Context, _ uuid.UUID, input orders.CompVoidInput) (*types.OrderView, error) {
			if input.ItemID != itemID || input.Reason == "" {
				t.Fatalf("unexpected comp/void input %+v", input)
			}
			return voided, nil
		},
		getOrder: func(context.Context, uuid.UUID) (*types.OrderView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "order store unreachable")
		},
	}
	payments := newTestPayments(t, api, order, &stubPrinter{})

	// The corrective fetch failing is logged, not surfaced.
	view, err := payments.CompVoid(context.Background(), itemID, "made wrong")
	require.NoError(t, err)
	require.Equal(t, 1100, view.TotalCents)
	require.Equal(t, 1100, order.Snapshot().TotalCents)
}
