package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
)

func (r *GormRepo) CreateReconciliationItem(ctx context.Context, item *models.ReconciliationItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) ListReconciliationItems(ctx context.Context, resolved bool, limit, offset int) ([]models.ReconciliationItem, int64, error) {
	var (
		items []models.ReconciliationItem
		total int64
	)
	db := r.DB.WithContext(ctx)
	if err := db.Model(&models.ReconciliationItem{}).Where("resolved = ?", resolved).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Where("resolved = ?", resolved).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormRepo) ResolveReconciliationItem(ctx context.Context, id uuid.UUID) (*models.ReconciliationItem, error) {
	var item models.ReconciliationItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			return err
		}
		if item.Resolved {
			return nil
		}
		item.Resolved = true
		return tx.Model(&item).Update("resolved", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
