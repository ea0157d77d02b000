package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByDraftAnchor(ctx context.Context, anchor string) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]models.Order, error)
	FindAuthorization(ctx context.Context, orderID uuid.UUID) (*models.CardAuthorization, error)
	CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateOrderItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	ListOpenOrders(ctx context.Context, locationID uuid.UUID, params pagination.Params) (*OpenOrderList, error)
}
