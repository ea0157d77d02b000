package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/pagination"
	"github.com/mvharris/tabwire/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByDraftAnchor(ctx context.Context, anchor string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("draft_anchor = ?", anchor).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]models.Order, error) {
	var children []models.Order
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (r *repository) FindAuthorization(ctx context.Context, orderID uuid.UUID) (*models.CardAuthorization, error) {
	var auth models.CardAuthorization
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&auth).Error
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *repository) CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("parent_id = ?", parentID).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpdateOrderItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

func (r *repository) ListOpenOrders(ctx context.Context, locationID uuid.UUID, params pagination.Params) (*OpenOrderList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("location_id = ?", locationID).
		Where("parent_id IS NULL").
		Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusClosed}).
		Order("created_at DESC").
		Order("id ASC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	normalized := pagination.NormalizeLimit(params.Limit)
	nextCursor := ""
	if len(rows) > normalized {
		last := rows[normalized-1]
		rows = rows[:normalized]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	counts, err := r.itemCounts(ctx, rows)
	if err != nil {
		return nil, err
	}

	list := &OpenOrderList{
		Orders:     make([]types.OpenOrder, 0, len(rows)),
		NextCursor: nextCursor,
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, toOpenOrder(row, counts[row.ID]))
	}
	return list, nil
}

func (r *repository) itemCounts(ctx context.Context, rows []models.Order) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	type countRow struct {
		OrderID uuid.UUID
		Count   int
	}
	var results []countRow
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_id, COUNT(*) AS count").
		Where("order_id IN ?", ids).
		Where("voided = false").
		Group("order_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		counts[result.OrderID] = result.Count
	}
	return counts, nil
}
