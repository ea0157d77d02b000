package terminal

import (
	"context"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/types"
)

var sendValidator = validator.New(validator.WithRequiredStructEnabled())

// sendChecklist is the pre-network validation for a kitchen send. Dine-in
// orders need a table, bar tabs need a tab name and a card on file before the
// first round goes back.
type sendChecklist struct {
	Kind        string `validate:"required"`
	TableNumber string `validate:"required_if=Kind dine_in"`
	TabName     string `validate:"required_if=Kind bar_tab"`
	ItemCount   int    `validate:"gt=0"`
}

// Sender runs the send-to-kitchen flow: validate, persist, send, print. A
// terminal-scoped in-flight flag rejects a second send while one is
// outstanding; rejected, not queued, because a queued duplicate risks a
// second kitchen ticket.
type Sender struct {
	order      *LocalOrder
	gateway    *Gateway
	client     orderAPI
	reconciler *Reconciler
	printer    ticketPrinter
	employeeID *uuid.UUID
	terminalID string

	sendInFlight atomic.Bool
}

// SenderParams groups the sender dependencies.
type SenderParams struct {
	Order      *LocalOrder
	Gateway    *Gateway
	Client     orderAPI
	Reconciler *Reconciler
	Printer    ticketPrinter
	EmployeeID *uuid.UUID
	TerminalID string
}

// NewSender validates dependencies and builds the send flow.
func NewSender(params SenderParams) (*Sender, error) {
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
	return &Sender{
		order:      params.Order,
		gateway:    params.Gateway,
		client:     params.Client,
		reconciler: params.Reconciler,
		printer:    params.Printer,
		employeeID: params.EmployeeID,
		terminalID: params.TerminalID,
	}, nil
}

// SendToKitchen fires the kitchen ticket for the current order. Validation
// runs before the in-flight guard and before any network call, so a rule
// violation never touches the network. The returned view carries the
// authoritative totals; a non-nil degraded error means the order was sent
// but the kitchen ticket was queued for retry.
func (s *Sender) SendToKitchen(ctx context.Context) (*types.OrderView, error) {
	snap := s.order.Snapshot()
	if err := s.validate(snap); err != nil {
		return nil, err
	}

	if !s.sendInFlight.CompareAndSwap(false, true) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a send is already in flight for this terminal")
	}
	defer s.sendInFlight.Store(false)

	orderID, err := s.gateway.EnsurePersisted(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.client.Send(ctx, orderID, orders.SendInput{
		EmployeeID: s.employeeID,
		TerminalID: s.terminalID,
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.reconciler.Observe(view.ID, view.Seq)
	s.order.ApplyAuthoritative(snap.Generation, view)

	// The order is sent no matter what printing does; a failed print
	// degrades to a queued retry, never an error on the send itself.
	if queued, printErr := s.printer.Submit(ctx, orderID.String(), enums.TicketTypeKitchen); printErr != nil {
		return view, pkgerrors.Wrap(pkgerrors.CodeDegraded, printErr, "kitchen ticket could not be queued")
	} else if queued {
		return view, pkgerrors.New(pkgerrors.CodeDegraded, "kitchen ticket queued for retry")
	}

	return view, nil
}

func (s *Sender) validate(snap Snapshot) error {
	checklist := sendChecklist{
		Kind:        string(snap.Kind),
		TableNumber: stringValue(snap.TableNumber),
		TabName:     stringValue(snap.TabName),
		ItemCount:   len(snap.Items),
	}
	if err := sendValidator.Struct(checklist); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, validationMessage(err))
	}
	if snap.Kind == enums.OrderKindBarTab && snap.Card == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "a card on file is required before sending a bar tab")
	}
	if snap.Kind.RequiresPaymentBeforeSend() && snap.Status != enums.OrderStatusPaid {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is required before sending this order")
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "send validation failed"
	}
	switch fieldErrs[0].StructField() {
	case "TableNumber":
		return "a table is required before sending"
	case "TabName":
		return "a tab name is required before sending"
	case "ItemCount":
		return "cannot send an empty order"
	default:
		return "send validation failed"
	}
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = fieldErrs
	return true
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
