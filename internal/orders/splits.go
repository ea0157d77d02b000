package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/types"
)

// CreateCheck adds one child check to a parent order. A freshly created,
// still-empty child counts as "open for editing" and blocks further splits of
// the same parent until it has content or is paid.
func (s *service) CreateCheck(ctx context.Context, parentID uuid.UUID) (*types.OrderView, error) {
	if parentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent order id required")
	}

	var childID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		parent, err := s.findForUpdate(ctx, repo, parentID)
		if err != nil {
			return err
		}
		if parent.Status.Terminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}
		if parent.ParentID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot split a split check")
		}

		children, err := repo.FindChildren(ctx, parent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split checks")
		}
		for _, child := range children {
			if !child.Status.Terminal() && child.TotalCents == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "a split check is still being edited")
			}
		}

		label := fmt.Sprintf("Check %d", len(children)+1)
		child := models.Order{
			LocationID:   parent.LocationID,
			Kind:         parent.Kind,
			Status:       enums.OrderStatusDraft,
			ParentID:     &parent.ID,
			DisplayLabel: &label,
			Seq:          1,
		}
		persisted, err := repo.CreateOrder(ctx, &child)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split check")
		}
		childID = persisted.ID

		return s.markParentSplit(ctx, tx, repo, parent)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, childID)
}

// EvenSplit divides the parent total into n equal checks; remainder cents go
// to the first check so the children always sum to the parent's pre-split
// total.
func (s *service) EvenSplit(ctx context.Context, input EvenSplitInput) (*types.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Ways < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "split requires at least two ways")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		parent, err := s.findForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if parent.Status.Terminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}
		if parent.ParentID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot split a split check")
		}

		existing, err := repo.CountChildren(ctx, parent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count split checks")
		}
		if existing > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has split checks")
		}

		shares := EvenShares(parent.TotalCents, input.Ways)
		for i, share := range shares {
			label := fmt.Sprintf("Check %d of %d", i+1, input.Ways)
			child := models.Order{
				LocationID:    parent.LocationID,
				Kind:          parent.Kind,
				Status:        enums.OrderStatusDraft,
				ParentID:      &parent.ID,
				DisplayLabel:  &label,
				Seq:           1,
				SubtotalCents: share,
				TotalCents:    share,
			}
			if _, err := repo.CreateOrder(ctx, &child); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split check")
			}
		}

		return s.markParentSplit(ctx, tx, repo, parent)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

// PayAllSplits settles every open child and closes the parent exactly once.
// Calling it again after all splits are paid is a no-op.
func (s *service) PayAllSplits(ctx context.Context, input PayAllSplitsInput) (*types.PayAllResult, error) {
	if input.ParentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent order id required")
	}

	result := &types.PayAllResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		parent, err := s.findForUpdate(ctx, repo, input.ParentID)
		if err != nil {
			return err
		}

		children, err := repo.FindChildren(ctx, parent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split checks")
		}
		if len(children) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no split checks")
		}

		now := time.Now().UTC()
		for _, child := range children {
			if child.Status.Terminal() {
				continue
			}
			if err := repo.UpdateOrder(ctx, child.ID, map[string]any{
				"status":    enums.OrderStatusPaid,
				"paid_at":   now,
				"closed_at": now,
				"seq":       child.Seq + 1,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark split check paid")
			}
			result.SplitsPaid++
			result.TotalAmountCents += child.TotalCents
		}

		if parent.Status.Terminal() {
			result.ParentClosed = true
			return nil
		}

		newSeq := parent.Seq + 1
		if err := repo.UpdateOrder(ctx, parent.ID, map[string]any{
			"status":    enums.OrderStatusClosed,
			"paid_at":   now,
			"closed_at": now,
			"seq":       newSeq,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close parent order")
		}
		result.ParentClosed = true

		parent.Status = enums.OrderStatusClosed
		parent.PaidAt = &now
		parent.ClosedAt = &now
		parent.Seq = newSeq
		itemCount, err := s.liveItemCount(ctx, repo, parent.ID)
		if err != nil {
			return err
		}
		return s.emitEvent(ctx, tx, enums.EventOrderClosed, *parent, itemCount, input.EmployeeID, "")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) markParentSplit(ctx context.Context, tx *gorm.DB, repo Repository, parent *models.Order) error {
	newSeq := parent.Seq + 1
	updates := map[string]any{"seq": newSeq}
	if parent.Status != enums.OrderStatusSplit {
		updates["status"] = enums.OrderStatusSplit
	}
	if err := repo.UpdateOrder(ctx, parent.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark parent split")
	}
	parent.Status = enums.OrderStatusSplit
	parent.Seq = newSeq
	itemCount, err := s.liveItemCount(ctx, repo, parent.ID)
	if err != nil {
		return err
	}
	return s.emitEvent(ctx, tx, enums.EventOrderUpdated, *parent, itemCount, parent.EmployeeID, "")
}
