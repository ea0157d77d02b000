package cards

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvharris/tabwire/pkg/db/models"
)

// Repository defines persistence operations for card authorizations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, auth *models.CardAuthorization) (*models.CardAuthorization, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CardAuthorization, error)
	FindLatestAuthorized(ctx context.Context, orderID uuid.UUID) (*models.CardAuthorization, error)
	Update(ctx context.Context, authID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a card authorization repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, auth *models.CardAuthorization) (*models.CardAuthorization, error) {
	if err := r.db.WithContext(ctx).Create(auth).Error; err != nil {
		return nil, err
	}
	return auth, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CardAuthorization, error) {
	var auths []models.CardAuthorization
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&auths).Error
	if err != nil {
		return nil, err
	}
	return auths, nil
}

func (r *repository) FindLatestAuthorized(ctx context.Context, orderID uuid.UUID) (*models.CardAuthorization, error) {
	var auth models.CardAuthorization
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("status = ?", "authorized").
		Order("created_at DESC").
		First(&auth).Error
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *repository) Update(ctx context.Context, authID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CardAuthorization{}).
		Where("id = ?", authID).
		Updates(updates).Error
}
