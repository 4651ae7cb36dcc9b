package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/pkg/database"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/pagination"
)

var (
	orderCols = []string{"id", "buyer_id", "total_amount", "status", "idempotency_key", "created_at", "updated_at"}
	itemCols  = []string{"order_id", "product_id", "seller_id", "title", "quantity", "price_at_purchase"}
)

func newOrderRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:             "ord-1",
		BuyerID:        "buyer-1",
		TotalAmount:    4500,
		Status:         domain.OrderStatusPending,
		IdempotencyKey: "key-1",
		CreatedAt:      now,
		UpdatedAt:      now,
		Items: []domain.OrderItem{
			{ProductID: "p1", SellerID: "s1", Title: "Lamp", Quantity: 2, PriceAtPurchase: 1000},
			{ProductID: "p2", SellerID: "s2", Title: "Mug", Quantity: 1, PriceAtPurchase: 2500},
		},
	}
}

func orderRow(o *domain.Order) []any {
	return []any{o.ID, o.BuyerID, o.TotalAmount, o.Status, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt}
}

func expectItems(mock pgxmock.PgxPoolIface, orders ...*domain.Order) {
	rows := pgxmock.NewRows(itemCols)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		for _, it := range o.Items {
			rows.AddRow(o.ID, it.ProductID, it.SellerID, it.Title, it.Quantity, it.PriceAtPurchase)
		}
	}
	mock.ExpectQuery("FROM order_items").WithArgs(ids).WillReturnRows(rows)
}

func TestOrderRepository_Create(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.BuyerID, o.TotalAmount, o.Status, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i, it := range o.Items {
		mock.ExpectExec("INSERT INTO order_items").
			WithArgs(o.ID, i, it.ProductID, it.SellerID, it.Title, it.Quantity, it.PriceAtPurchase).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_ItemFailureRollsBack(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnError(&pgconn.PgError{Code: "23514", Message: "check violation"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order item 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_DuplicateIdempotencyKey(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestOrderRepository_GetByID(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()

	mock.ExpectQuery("FROM orders o WHERE o.id").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))
	expectItems(mock, o)

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery("FROM orders o WHERE o.id").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepository_GetByIdempotencyKey(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()

	mock.ExpectQuery("o.buyer_id = \\$1 AND o.idempotency_key = \\$2").WithArgs(o.BuyerID, "key-1").
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))
	expectItems(mock, o)

	got, err := repo.GetByIdempotencyKey(context.Background(), o.BuyerID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestOrderRepository_ListByBuyer(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()

	mock.ExpectQuery(`WHERE o.buyer_id = \$1\s+ORDER BY o.created_at DESC, o.id\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(o.BuyerID, 20, 0).
		WillReturnRows(pgxmock.NewRows(append(orderCols, "total_count")).AddRow(append(orderRow(o), 1)...))
	expectItems(mock, o)

	orders, total, err := repo.ListByBuyer(context.Background(), o.BuyerID, pagination.New(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListBySeller_WithStatus(t *testing.T) {
	repo, mock := newOrderRepo(t)
	status := domain.OrderStatusDelivered

	mock.ExpectQuery(`oi.seller_id = \$1\) AND o.status = \$2`).
		WithArgs("s1", "delivered", 10, 0).
		WillReturnRows(pgxmock.NewRows(append(orderCols, "total_count")))

	orders, total, err := repo.ListBySeller(context.Background(), "s1", &status, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListBySellerSince(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()
	since := o.CreatedAt.Add(-time.Hour)

	mock.ExpectQuery("o.created_at >= \\$2").WithArgs("s1", since).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))
	expectItems(mock, o)

	orders, err := repo.ListBySellerSince(context.Background(), "s1", since)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2000), orders[0].SellerTotal("s1"))
}

func TestOrderRepository_SellerStats(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery("FROM order_items oi").WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"revenue", "pending", "delivered", "cancelled"}).
			AddRow(int64(12000), 2, 3, 1))

	stats, err := repo.SellerStats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SellerOrderStats{TotalRevenue: 12000, PendingOrders: 2, DeliveredOrders: 3, CancelledOrders: 1}, stats)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()
	delivered := *o
	delivered.Status = domain.OrderStatusDelivered

	mock.ExpectExec("UPDATE orders").
		WithArgs("delivered", pgxmock.AnyArg(), o.ID, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("FROM orders o WHERE o.id").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(&delivered)...))
	expectItems(mock, o)

	got, err := repo.UpdateStatus(context.Background(), o.ID, domain.OrderStatusPending, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_LostRace(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := sampleOrder()
	cancelled := *o
	cancelled.Status = domain.OrderStatusCancelled

	mock.ExpectExec("UPDATE orders").
		WithArgs("delivered", pgxmock.AnyArg(), o.ID, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM orders o WHERE o.id").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(&cancelled)...))
	expectItems(mock, o)

	_, err := repo.UpdateStatus(context.Background(), o.ID, domain.OrderStatusPending, domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
