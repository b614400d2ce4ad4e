package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/internal/payment"
)

func TestReconciliationService_ListAndResolve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	sandbox := payment.NewSandboxGateway()
	card := payment.NewCardProcessor(sandbox)
	charged, err := card.Charge(ctx, payment.ChargeRequest{Reference: "r", Amount: decimal.NewFromInt(3), Currency: "USD", Card: testCard()})
	require.NoError(t, err)

	item := &models.ReconciliationItem{
		UserID:        f.user.ID,
		OrderID:       uuid.New(),
		TransactionID: charged.TransactionID,
		PaymentMethod: string(payment.MethodCard),
		Amount:        decimal.NewFromInt(3),
		Currency:      "USD",
		Reason:        "stock changed",
	}
	require.NoError(t, f.repo.CreateReconciliationItem(ctx, item))

	svc := &ReconciliationService{Repo: f.repo, Payments: payment.NewRegistry(card)}

	page, err := svc.List(ctx, false, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, payment.StatusSucceeded, page.Items[0].ProcessorStatus)
	assert.Equal(t, item.ID, page.Items[0].ID)

	resolved, err := svc.Resolve(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	page, err = svc.List(ctx, false, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = svc.Resolve(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconciliationService_UnknownTransaction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateReconciliationItem(ctx, &models.ReconciliationItem{
		UserID:        f.user.ID,
		OrderID:       uuid.New(),
		TransactionID: "sbx_unknown",
		PaymentMethod: "card",
		Amount:        decimal.NewFromInt(1),
		Currency:      "USD",
		Reason:        "x",
	}))

	svc := &ReconciliationService{Repo: f.repo, Payments: payment.NewRegistry(payment.NewCardProcessor(payment.NewSandboxGateway()))}
	page, err := svc.List(ctx, false, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, payment.StatusUnknown, page.Items[0].ProcessorStatus)
}
