package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
)

const maxOrderNumberAttempts = 5

var ErrOrderNumberExhausted = fmt.Errorf("could not allocate a unique order number after %d attempts", maxOrderNumberAttempts)

// DefaultOrderNumber returns ORD-YYYYMMDD-XXXXXX using the current UTC date.
func DefaultOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// CreateOrder inserts the order header and its items. A number collision is
// retried with a suffixed number inside a savepoint so the surrounding
// transaction stays usable.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)
	gen := r.NewOrderNumber
	if gen == nil {
		gen = DefaultOrderNumber
	}

	base := gen()
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.Number = base
		if attempt > 0 {
			order.Number = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		lastErr = db.Transaction(func(sp *gorm.DB) error {
			return sp.Omit("Items").Create(order).Error
		})
		if lastErr == nil {
			break
		}
		if !isUniqueViolation(lastErr) {
			return lastErr
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrOrderNumberExhausted, lastErr)
	}

	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return db.Omit("Product").Create(&order.Items).Error
}

func (r *GormRepo) GetOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Items.Product").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) CountOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}
