package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/repository"
	"github.com/sofi161/martapp/pkg/database"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/pagination"
)

const orderColumns = `o.id, o.buyer_id, o.total_amount, o.status, COALESCE(o.idempotency_key, ''), o.created_at, o.updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// Create inserts the order row and its item rows atomically. Item position
// preserves the order's line sequence.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	orderQuery := `
		INSERT INTO orders (id, buyer_id, total_amount, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`
	itemQuery := `
		INSERT INTO order_items (order_id, position, product_id, seller_id, title, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, done := database.TraceQuery(ctx, "orders.create", orderQuery)
	err := database.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, orderQuery,
			o.ID,
			o.BuyerID,
			o.TotalAmount,
			o.Status,
			o.IdempotencyKey,
			o.CreatedAt,
			o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, it := range o.Items {
			if _, err := tx.Exec(ctx, itemQuery,
				o.ID,
				i,
				it.ProductID,
				it.SellerID,
				it.Title,
				it.Quantity,
				it.PriceAtPurchase,
			); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
	done(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "idempotency key", o.IdempotencyKey)
		}
		return err
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "orders.get", `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
}

func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error) {
	return r.getOne(ctx, "orders.get_by_idempotency_key",
		`SELECT `+orderColumns+` FROM orders o WHERE o.buyer_id = $1 AND o.idempotency_key = $2`, buyerID, key)
}

func (r *OrderRepository) getOne(ctx context.Context, op, query string, args ...any) (*domain.Order, error) {
	ctx, done := database.TraceQuery(ctx, op, query)
	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		done(nil)
		return nil, apperrors.ErrNotFound
	}
	done(err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	orders := []domain.Order{*o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, p pagination.Params) ([]domain.Order, int, error) {
	var c conditions
	c.add("o.buyer_id = $%d", buyerID)
	return r.list(ctx, "orders.list_by_buyer", c, p)
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, status *domain.OrderStatus, p pagination.Params) ([]domain.Order, int, error) {
	var c conditions
	c.add("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = $%d)", sellerID)
	if status != nil {
		c.add("o.status = $%d", string(*status))
	}
	return r.list(ctx, "orders.list_by_seller", c, p)
}

func (r *OrderRepository) list(ctx context.Context, op string, c conditions, p pagination.Params) ([]domain.Order, int, error) {
	where := c.where()
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders o
		%s
		ORDER BY o.created_at DESC, o.id
		LIMIT %s OFFSET %s`,
		orderColumns, where, c.placeholder(p.Limit()), c.placeholder(p.Offset()),
	)

	ctx, done := database.TraceQuery(ctx, op, query)
	rows, err := r.pool.Query(ctx, query, c.args...)
	if err != nil {
		done(err)
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, p.Limit())
	var total int
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.BuyerID, &o.TotalAmount, &o.Status, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
			&total,
		); err != nil {
			done(err)
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListBySellerSince returns every order at or after since that has one of
// the seller's lines, oldest first.
func (r *OrderRepository) ListBySellerSince(ctx context.Context, sellerID string, since time.Time) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.created_at >= $2
		  AND EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = $1)
		ORDER BY o.created_at, o.id`

	ctx, done := database.TraceQuery(ctx, "orders.list_by_seller_since", query)
	rows, err := r.pool.Query(ctx, query, sellerID, since)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("list seller orders since: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			done(err)
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SellerStats attributes revenue per line: only the seller's own lines in
// non-cancelled orders count.
func (r *OrderRepository) SellerStats(ctx context.Context, sellerID string) (domain.SellerOrderStats, error) {
	query := `
		SELECT
			COALESCE(SUM(oi.price_at_purchase * oi.quantity) FILTER (WHERE o.status <> 'cancelled'), 0),
			COUNT(DISTINCT o.id) FILTER (WHERE o.status = 'pending'),
			COUNT(DISTINCT o.id) FILTER (WHERE o.status = 'delivered'),
			COUNT(DISTINCT o.id) FILTER (WHERE o.status = 'cancelled')
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.seller_id = $1`

	ctx, done := database.TraceQuery(ctx, "orders.seller_stats", query)
	var s domain.SellerOrderStats
	err := r.pool.QueryRow(ctx, query, sellerID).Scan(
		&s.TotalRevenue, &s.PendingOrders, &s.DeliveredOrders, &s.CancelledOrders,
	)
	done(err)
	if err != nil {
		return domain.SellerOrderStats{}, fmt.Errorf("seller stats: %w", err)
	}
	return s, nil
}

// UpdateStatus is a compare-and-set on status so two concurrent
// transitions cannot both succeed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	ctx, done := database.TraceQuery(ctx, "orders.update_status", query)
	ct, err := r.pool.Exec(ctx, query, string(to), time.Now().UTC(), id, string(from))
	done(err)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Conflict(fmt.Sprintf("order %s is %s, not %s", id, current.Status, from))
	}
	return r.GetByID(ctx, id)
}

// loadItems fills Items for every order with one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []domain.OrderItem{}
	}

	query := `
		SELECT order_id, product_id, seller_id, title, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	ctx, done := database.TraceQuery(ctx, "orders.load_items", query)
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		done(err)
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      domain.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.SellerID, &it.Title, &it.Quantity, &it.PriceAtPurchase); err != nil {
			done(err)
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.BuyerID, &o.TotalAmount, &o.Status, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
