package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/mvharris/tabwire/pkg/db"
	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/outbox"
	"github.com/mvharris/tabwire/pkg/pagination"
	"github.com/mvharris/tabwire/pkg/types"
)

const draftAnchorConstraint = "ux_orders_draft_anchor"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the authoritative order operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*types.OrderView, error)
	AppendItems(ctx context.Context, input AppendItemsInput) (*types.OrderView, error)
	Send(ctx context.Context, input SendInput) (*types.OrderView, error)
	ApplyDiscount(ctx context.Context, input DiscountInput) (*types.OrderView, error)
	CompVoid(ctx context.Context, input CompVoidInput) (*types.OrderView, error)
	Pay(ctx context.Context, input PayInput) (*types.OrderView, error)
	Get(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error)
	ListOpen(ctx context.Context, locationID uuid.UUID, params pagination.Params) (*OpenOrderList, error)
	CreateCheck(ctx context.Context, parentID uuid.UUID) (*types.OrderView, error)
	EvenSplit(ctx context.Context, input EvenSplitInput) (*types.OrderView, error)
	PayAllSplits(ctx context.Context, input PayAllSplitsInput) (*types.PayAllResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	pricer *Pricer
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, pricer *Pricer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		pricer: pricer,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*types.OrderView, error) {
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	if input.DraftAnchor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "draft anchor required")
	}

	var created models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		items := buildItems(input.Items)
		totals := s.pricer.Compute(items, 0)

		anchor := input.DraftAnchor
		order := models.Order{
			LocationID:    input.LocationID,
			Kind:          input.Kind,
			Status:        enums.OrderStatusDraft,
			TabName:       input.TabName,
			TableNumber:   input.TableNumber,
			EmployeeID:    input.EmployeeID,
			DraftAnchor:   &anchor,
			Seq:           1,
			SubtotalCents: totals.SubtotalCents,
			TaxCents:      totals.TaxCents,
			DiscountCents: totals.DiscountCents,
			TotalCents:    totals.TotalCents,
		}
		if input.TerminalID != "" {
			terminalID := input.TerminalID
			order.TerminalID = &terminalID
		}

		persisted, err := repo.CreateOrder(ctx, &order)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = persisted.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		created = *persisted
		return s.emitEvent(ctx, tx, enums.EventOrderCreated, created, len(items), input.EmployeeID, input.TerminalID)
	})
	if err != nil {
		// A replayed create with the same draft anchor converges on the row
		// the first attempt persisted.
		if dbpkg.IsUniqueViolation(err, draftAnchorConstraint) {
			existing, findErr := s.repo.FindOrderByDraftAnchor(ctx, input.DraftAnchor)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, findErr, "load order by draft anchor")
			}
			return s.Get(ctx, existing.ID)
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create order")
	}
	return s.Get(ctx, created.ID)
}

func (s *service) AppendItems(ctx context.Context, input AppendItemsInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadMutable(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}

		items := buildItems(input.Items)
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order items")
		}

		return s.repriceAndEmit(ctx, tx, repo, order, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

// Send fires the kitchen transition exactly once. A retried send against an
// already-sent order is a no-op returning current state, never a second
// ticket.
func (s *service) Send(ctx context.Context, input SendInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.SentAt != nil {
			return nil
		}
		// Takeout settles before the ticket fires, so a paid takeout still
		// gets its one kitchen send.
		if order.Status.Terminal() && !order.Kind.RequiresPaymentBeforeSend() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}

		now := time.Now().UTC()
		newSeq := order.Seq + 1
		status := order.Status
		if !status.Terminal() {
			status = enums.OrderStatusSent
		}
		updates := map[string]any{
			"status":  status,
			"sent_at": now,
			"seq":     newSeq,
		}
		if input.EmployeeID != nil {
			updates["employee_id"] = *input.EmployeeID
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order sent")
		}

		order.Status = status
		order.SentAt = &now
		order.Seq = newSeq
		itemCount, err := s.liveItemCount(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		return s.emitEvent(ctx, tx, enums.EventOrderUpdated, *order, itemCount, input.EmployeeID, input.TerminalID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

func (s *service) ApplyDiscount(ctx context.Context, input DiscountInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadMutable(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}

		items, err := repo.FindOrderItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		subtotal := 0
		for _, item := range items {
			subtotal += item.LineTotalCents()
		}
		discount, err := s.pricer.DiscountCents(input, subtotal)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve discount")
		}

		return s.repriceAndEmit(ctx, tx, repo, order, &discount)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

func (s *service) CompVoid(ctx context.Context, input CompVoidInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "void reason required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadMutable(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}

		items, err := repo.FindOrderItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		var target *models.OrderItem
		for i := range items {
			if items[i].ID == input.ItemID {
				target = &items[i]
				break
			}
		}
		if target == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found on order")
		}
		if target.Voided {
			return nil
		}

		if err := repo.UpdateOrderItem(ctx, target.ID, map[string]any{
			"voided":      true,
			"void_reason": input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void order item")
		}

		return s.repriceAndEmit(ctx, tx, repo, order, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

func (s *service) Pay(ctx context.Context, input PayInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return nil
		}

		children, err := repo.FindChildren(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split checks")
		}
		for _, child := range children {
			if !child.Status.Terminal() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "open split checks must be paid through pay-all")
			}
		}

		now := time.Now().UTC()
		newSeq := order.Seq + 1
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":    enums.OrderStatusPaid,
			"paid_at":   now,
			"closed_at": now,
			"seq":       newSeq,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		order.Status = enums.OrderStatusPaid
		order.PaidAt = &now
		order.ClosedAt = &now
		order.Seq = newSeq
		itemCount, err := s.liveItemCount(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		return s.emitEvent(ctx, tx, enums.EventOrderClosed, *order, itemCount, input.EmployeeID, "")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	items, err := s.repo.FindOrderItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	children, err := s.repo.FindChildren(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split checks")
	}
	auth, err := s.repo.FindAuthorization(ctx, order.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card authorization")
	}
	view := toOrderView(*order, items, children, auth)
	return &view, nil
}

func (s *service) ListOpen(ctx context.Context, locationID uuid.UUID, params pagination.Params) (*OpenOrderList, error) {
	if locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	list, err := s.repo.ListOpenOrders(ctx, locationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open orders")
	}
	return list, nil
}

// loadMutable locks the order row and rejects mutation of settled or split
// orders.
func (s *service) loadMutable(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.findForUpdate(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
	}
	if order.Status == enums.OrderStatusSplit {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has been split into checks")
	}
	return order, nil
}

func (s *service) findForUpdate(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// repriceAndEmit recomputes authoritative totals from the live item lines,
// bumps the order sequence, and queues an updated event.
func (s *service) repriceAndEmit(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, discountCents *int) error {
	items, err := repo.FindOrderItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order items")
	}

	discount := order.DiscountCents
	if discountCents != nil {
		discount = *discountCents
	}
	totals := s.pricer.Compute(items, discount)

	newSeq := order.Seq + 1
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"subtotal_cents": totals.SubtotalCents,
		"tax_cents":      totals.TaxCents,
		"discount_cents": totals.DiscountCents,
		"total_cents":    totals.TotalCents,
		"seq":            newSeq,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order totals")
	}

	order.SubtotalCents = totals.SubtotalCents
	order.TaxCents = totals.TaxCents
	order.DiscountCents = totals.DiscountCents
	order.TotalCents = totals.TotalCents
	order.Seq = newSeq

	itemCount := 0
	for _, item := range items {
		if !item.Voided {
			itemCount++
		}
	}
	return s.emitEvent(ctx, tx, enums.EventOrderUpdated, *order, itemCount, order.EmployeeID, "")
}

func (s *service) liveItemCount(ctx context.Context, repo Repository, orderID uuid.UUID) (int, error) {
	items, err := repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	count := 0
	for _, item := range items {
		if !item.Voided {
			count++
		}
	}
	return count, nil
}

func (s *service) emitEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order models.Order, itemCount int, employeeID *uuid.UUID, terminalID string) error {
	order.UpdatedAt = time.Now().UTC()
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		LocationID:    order.LocationID,
		Seq:           order.Seq,
		Data:          toOpenOrder(order, itemCount),
	}
	if employeeID != nil || terminalID != "" {
		event.Actor = &outbox.ActorRef{EmployeeID: employeeID, TerminalID: terminalID}
	}
	return s.outbox.Emit(ctx, tx, event)
}

func buildItems(inputs []ItemInput) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		qty := input.Qty
		if qty <= 0 {
			qty = 1
		}
		mods := make([]models.ItemModifier, 0, len(input.Modifiers))
		for _, m := range input.Modifiers {
			mods = append(mods, models.ItemModifier{Name: m.Name, PriceCents: m.PriceCents})
		}
		items = append(items, models.OrderItem{
			Name:           input.Name,
			UnitPriceCents: input.UnitPriceCents,
			Qty:            qty,
			Modifiers:      mods,
			Notes:          input.Notes,
		})
	}
	return items
}
