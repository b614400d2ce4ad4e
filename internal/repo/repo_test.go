package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/pkg/db"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return New(gdb)
}

func seedProduct(t *testing.T, r *GormRepo, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: "widget", Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func newOrder(userID uuid.UUID, p *models.Product, qty int) *models.Order {
	sub := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	tx := "sbx_test"
	return &models.Order{
		UserID:        userID,
		Status:        models.OrderStatusCompleted,
		TotalAmount:   sub,
		Currency:      "USD",
		TransactionID: &tx,
		PaymentMethod: "card",
		Items: []models.OrderItem{
			{ProductID: p.ID, LineNo: 1, Quantity: qty, UnitPrice: p.Price, Subtotal: sub},
		},
	}
}

func TestDecrementStock_Guard(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "5.00", 3)

	ok, err := r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}

func TestDecrementStock_MissingProduct(t *testing.T) {
	r := newTestRepo(t)
	ok, err := r.DecrementStock(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetProduct_NotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetProduct(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateOrder_AndReadBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "19.99", 10)
	userID := uuid.New()

	o := newOrder(userID, p, 2)
	require.NoError(t, r.CreateOrder(ctx, o))
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, o.Number)

	got, err := r.GetOrderForUser(ctx, o.ID, userID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("39.98")))
	require.NotNil(t, got.Items[0].Product)
	assert.Equal(t, p.ID, got.Items[0].Product.ID)
}

func TestGetOrderForUser_ForeignOwner(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "1.00", 10)
	o := newOrder(uuid.New(), p, 1)
	require.NoError(t, r.CreateOrder(ctx, o))

	_, err := r.GetOrderForUser(ctx, o.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateOrder_NumberCollisionRetries(t *testing.T) {
	r := newTestRepo(t)
	r.NewOrderNumber = func() string { return "ORD-20260101-AAAAAA" }
	ctx := context.Background()
	p := seedProduct(t, r, "1.00", 10)
	userID := uuid.New()

	first := newOrder(userID, p, 1)
	second := newOrder(userID, p, 1)

	err := r.Transaction(ctx, func(tx *GormRepo) error {
		if err := tx.CreateOrder(ctx, first); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, second)
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260101-AAAAAA", first.Number)
	assert.Equal(t, "ORD-20260101-AAAAAA-2", second.Number)

	total, err := r.CountOrders(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestCreateOrder_NumberExhausted(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "1.00", 10)
	userID := uuid.New()

	r.NewOrderNumber = func() string { return "ORD-20260101-BBBBBB" }
	require.NoError(t, r.CreateOrder(ctx, newOrder(userID, p, 1)))
	for i := 2; i <= maxOrderNumberAttempts; i++ {
		n := fmt.Sprintf("ORD-20260101-BBBBBB-%d", i)
		r.NewOrderNumber = func() string { return n }
		require.NoError(t, r.CreateOrder(ctx, newOrder(userID, p, 1)))
	}

	r.NewOrderNumber = func() string { return "ORD-20260101-BBBBBB" }
	err := r.CreateOrder(ctx, newOrder(userID, p, 1))
	assert.True(t, errors.Is(err, ErrOrderNumberExhausted))
}

func TestTransaction_RollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "2.50", 5)
	boom := errors.New("boom")

	err := r.Transaction(ctx, func(tx *GormRepo) error {
		ok, err := tx.DecrementStock(ctx, p.ID, 5)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestListOrders_NewestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "1.00", 100)
	userID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		o := newOrder(userID, p, 1)
		require.NoError(t, r.CreateOrder(ctx, o))
		ids = append(ids, o.ID)
	}
	require.NoError(t, r.CreateOrder(ctx, newOrder(uuid.New(), p, 1)))

	orders, err := r.ListOrders(ctx, userID, 2, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[1], orders[1].ID)

	orders, err = r.ListOrders(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, ids[0], orders[0].ID)
}

func TestReconciliation_CreateListResolve(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	item := &models.ReconciliationItem{
		UserID:        uuid.New(),
		OrderID:       uuid.New(),
		TransactionID: "sbx_1",
		PaymentMethod: "card",
		Amount:        decimal.RequireFromString("10.00"),
		Currency:      "USD",
		Reason:        "stock changed",
	}
	require.NoError(t, r.CreateReconciliationItem(ctx, item))

	open, total, err := r.ListReconciliationItems(ctx, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, open, 1)
	assert.Equal(t, "sbx_1", open[0].TransactionID)

	resolved, err := r.ResolveReconciliationItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	open, total, err = r.ListReconciliationItems(ctx, false, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, open)

	_, err = r.ResolveReconciliationItem(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
