package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/internal/repo"
	"github.com/Skotchmaster/online_shop/internal/util"
)

type OrderPage struct {
	Items      []models.Order `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

type QueryService struct {
	Repo *repo.GormRepo
}

// ListOrders returns the caller's orders, newest first. Page sizes above
// util.MaxPageSize are clamped.
func (s *QueryService) ListOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrValidation)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page_size must be >= 1", ErrValidation)
	}
	offset, limit := util.Calculate(page, pageSize)

	total, err := s.Repo.CountOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	items := []models.Order{}
	if int64(offset) < total {
		items, err = s.Repo.ListOrders(ctx, userID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
	}

	return &OrderPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   limit,
		TotalPages: util.TotalPages(total, limit),
	}, nil
}

// GetOrder hides other users' orders behind the same not-found error as
// missing ones.
func (s *QueryService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s not found", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}
