package terminal

import (
	"context"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/types"
)

// Payments runs settlement and the check-adjusting mutations. Discounts and
// comp/voids change the priced totals, so each one is followed by a corrective
// reconcile; the sequence guard drops it when the mutation response already
// carried the newer state.
type Payments struct {
	order      *LocalOrder
	gateway    *Gateway
	client     orderAPI
	reconciler *Reconciler
	printer    ticketPrinter
	logg       *logger.Logger
	employeeID *uuid.UUID
}

// PaymentsParams groups the payment flow dependencies.
type PaymentsParams struct {
	Order      *LocalOrder
	Gateway    *Gateway
	Client     orderAPI
	Reconciler *Reconciler
	Printer    ticketPrinter
	Logger     *logger.Logger
	EmployeeID *uuid.UUID
}

// NewPayments validates dependencies and builds the payment flow.
func NewPayments(params PaymentsParams) (*Payments, error) {
	if params.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "local order required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway required")
	}
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order client required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Printer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "printer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Payments{
		order:      params.Order,
		gateway:    params.Gateway,
		client:     params.Client,
		reconciler: params.Reconciler,
		printer:    params.Printer,
		logg:       params.Logger,
		employeeID: params.EmployeeID,
	}, nil
}

// Pay settles the current order. The settlement itself must succeed; the
// receipt print degrades to a queued retry and never rolls the payment back.
func (p *Payments) Pay(ctx context.Context, method enums.PaymentMethod) (*types.OrderView, error) {
	snap := p.order.Snapshot()

	orderID, err := p.gateway.EnsurePersisted(ctx)
	if err != nil {
		return nil, err
	}

	view, err := p.client.Pay(ctx, orderID, orders.PayInput{
		Method:     method,
		EmployeeID: p.employeeID,
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}
	p.reconciler.Observe(view.ID, view.Seq)
	p.order.ApplyAuthoritative(snap.Generation, view)

	logCtx := p.logg.WithOrderID(ctx, view.ID.String())
	logCtx = p.logg.WithField(logCtx, "method", string(method))
	p.logg.Info(logCtx, "order settled")

	if queued, printErr := p.printer.Submit(ctx, orderID.String(), enums.TicketTypeReceipt); printErr != nil {
		return view, pkgerrors.Wrap(pkgerrors.CodeDegraded, printErr, "receipt could not be queued")
	} else if queued {
		return view, pkgerrors.New(pkgerrors.CodeDegraded, "receipt queued for retry")
	}

	return view, nil
}

// ApplyDiscount applies a percent or amount discount and refreshes the local
// totals from the authoritative response.
func (p *Payments) ApplyDiscount(ctx context.Context, discountType orders.DiscountType, value int) (*types.OrderView, error) {
	snap := p.order.Snapshot()

	orderID, err := p.gateway.EnsurePersisted(ctx)
	if err != nil {
		return nil, err
	}

	view, err := p.client.ApplyDiscount(ctx, orderID, orders.DiscountInput{
		Type:       discountType,
		Value:      value,
		EmployeeID: p.employeeID,
	})
	if err != nil {
		return nil, err
	}
	p.reconciler.Observe(view.ID, view.Seq)
	p.order.ApplyAuthoritative(snap.Generation, view)

	p.reconcileAfterMutation(ctx, orderID)
	return view, nil
}

// CompVoid removes a line item from the check with a reason.
func (p *Payments) CompVoid(ctx context.Context, itemID uuid.UUID, reason string) (*types.OrderView, error) {
	snap := p.order.Snapshot()

	orderID, err := p.gateway.EnsurePersisted(ctx)
	if err != nil {
		return nil, err
	}

	view, err := p.client.CompVoid(ctx, orderID, orders.CompVoidInput{
		ItemID:     itemID,
		Reason:     reason,
		EmployeeID: p.employeeID,
	})
	if err != nil {
		return nil, err
	}
	p.reconciler.Observe(view.ID, view.Seq)
	p.order.ApplyAuthoritative(snap.Generation, view)

	p.reconcileAfterMutation(ctx, orderID)
	return view, nil
}

// reconcileAfterMutation runs the corrective fetch that follows a pricing
// mutation. A failure only logs; the mutation response already applied.
func (p *Payments) reconcileAfterMutation(ctx context.Context, orderID uuid.UUID) {
	if _, err := p.reconciler.Reconcile(ctx, orderID); err != nil {
		logCtx := p.logg.WithOrderID(ctx, orderID.String())
		p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "post-mutation reconcile failed")
	}
}
