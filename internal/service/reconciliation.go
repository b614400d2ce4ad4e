package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/internal/payment"
	"github.com/Skotchmaster/online_shop/internal/repo"
	"github.com/Skotchmaster/online_shop/internal/util"
	"github.com/Skotchmaster/online_shop/pkg/logging"
)

type ReconciliationEntry struct {
	models.ReconciliationItem
	// ProcessorStatus is what the payment processor reports for the charge
	// right now, or "unknown" if it could not be asked.
	ProcessorStatus payment.TransactionStatus `json:"processor_status"`
}

type ReconciliationPage struct {
	Items      []ReconciliationEntry `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// ReconciliationService is the operator view over charges that have no order.
type ReconciliationService struct {
	Repo     *repo.GormRepo
	Payments *payment.Registry
}

func (s *ReconciliationService) List(ctx context.Context, resolved bool, page, pageSize int) (*ReconciliationPage, error) {
	l := logging.FromContext(ctx).With("svc", "reconciliation")
	offset, limit := util.Calculate(page, pageSize)

	items, total, err := s.Repo.ListReconciliationItems(ctx, resolved, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation items: %w", err)
	}

	out := make([]ReconciliationEntry, 0, len(items))
	for _, it := range items {
		entry := ReconciliationEntry{ReconciliationItem: it, ProcessorStatus: payment.StatusUnknown}
		if st, err := s.processorStatus(ctx, it); err != nil {
			l.Warn("query_transaction_failed", "transaction_id", it.TransactionID, "error", err)
		} else {
			entry.ProcessorStatus = st
		}
		out = append(out, entry)
	}

	if page < 1 {
		page = 1
	}
	return &ReconciliationPage{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   limit,
		TotalPages: util.TotalPages(total, limit),
	}, nil
}

func (s *ReconciliationService) processorStatus(ctx context.Context, it models.ReconciliationItem) (payment.TransactionStatus, error) {
	if s.Payments == nil {
		return payment.StatusUnknown, nil
	}
	method, err := payment.ParseMethod(it.PaymentMethod)
	if err != nil {
		return payment.StatusUnknown, err
	}
	p, err := s.Payments.Get(method)
	if err != nil {
		return payment.StatusUnknown, err
	}
	return p.QueryTransaction(ctx, it.TransactionID)
}

func (s *ReconciliationService) Resolve(ctx context.Context, id uuid.UUID) (*models.ReconciliationItem, error) {
	item, err := s.Repo.ResolveReconciliationItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reconciliation item %s not found", ErrNotFound, id)
		}
		return nil, fmt.Errorf("resolve reconciliation item: %w", err)
	}
	logging.FromContext(ctx).Info("reconciliation_resolved", "reconciliation_item", item.ID, "transaction_id", item.TransactionID)
	return item, nil
}
