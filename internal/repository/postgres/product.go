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
)

const productColumns = `id, seller_id, name, slug, description, price, category, image_urls, stock, sales, status, created_at, updated_at`

var productSorts = map[string]string{
	repository.SortNewest:    "created_at DESC, id",
	repository.SortPriceAsc:  "price ASC, id",
	repository.SortPriceDesc: "price DESC, id",
	repository.SortStockAsc:  "stock ASC, id",
	repository.SortBestSell:  "sales DESC, id",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ctx, done := database.TraceQuery(ctx, "products.create", query)
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.SellerID,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Category,
		imageURLs(p.ImageURLs),
		p.Stock,
		p.Sales,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	done(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, done := database.TraceQuery(ctx, "products.get", query)
	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		done(nil)
		return nil, apperrors.ErrNotFound
	}
	done(err)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var c conditions
	if filter.SellerID != nil {
		c.add("seller_id = $%d", *filter.SellerID)
	}
	if filter.Category != nil {
		c.add("category = $%d", *filter.Category)
	}
	if filter.Status != nil {
		c.add("status = $%d", *filter.Status)
	}
	if filter.Search != nil {
		c.add("name ILIKE $%d", "%"+escapeLike(*filter.Search)+"%")
	}
	if filter.MinPrice != nil {
		c.add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		c.add("price <= $%d", *filter.MaxPrice)
	}
	if filter.MaxStock != nil {
		c.add("stock < $%d", *filter.MaxStock)
	}

	order, ok := productSorts[filter.Sort]
	if !ok {
		order = productSorts[repository.SortNewest]
	}
	where := c.where()
	limit := c.placeholder(filter.Limit())
	offset := c.placeholder(filter.Offset())

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		productColumns, where, order, limit, offset,
	)

	ctx, done := database.TraceQuery(ctx, "products.list", query)
	rows, err := r.pool.Query(ctx, query, c.args...)
	if err != nil {
		done(err)
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.Limit())
	var total int
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.SellerID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Category,
			&p.ImageURLs, &p.Stock, &p.Sales, &p.Status, &p.CreatedAt, &p.UpdatedAt,
			&total,
		); err != nil {
			done(err)
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, category = $5,
		    image_urls = $6, stock = $7, status = $8, updated_at = $9
		WHERE id = $10`

	ctx, done := database.TraceQuery(ctx, "products.update", query)
	ct, err := r.pool.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Category,
		imageURLs(p.ImageURLs),
		p.Stock,
		p.Status,
		p.UpdatedAt,
		p.ID,
	)
	done(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`

	ctx, done := database.TraceQuery(ctx, "products.delete", query)
	ct, err := r.pool.Exec(ctx, query, id)
	done(err)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.setColumn(ctx, "products.update_status", `UPDATE products SET status = $1, updated_at = $2 WHERE id = $3`, id, status)
}

func (r *ProductRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	return r.setColumn(ctx, "products.update_stock", `UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3`, id, stock)
}

func (r *ProductRepository) setColumn(ctx context.Context, op, query, id string, value any) error {
	ctx, done := database.TraceQuery(ctx, op, query)
	ct, err := r.pool.Exec(ctx, query, value, time.Now().UTC(), id)
	done(err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepository) CountBySeller(ctx context.Context, sellerID string) (int, int, error) {
	query := `
		SELECT count(*), count(*) FILTER (WHERE status = 'active')
		FROM products
		WHERE seller_id = $1`

	ctx, done := database.TraceQuery(ctx, "products.count_by_seller", query)
	var total, active int
	err := r.pool.QueryRow(ctx, query, sellerID).Scan(&total, &active)
	done(err)
	if err != nil {
		return 0, 0, fmt.Errorf("count seller products: %w", err)
	}
	return total, active, nil
}

// RecordSales applies every line in one transaction. Products deleted since
// the order was placed are skipped.
func (r *ProductRepository) RecordSales(ctx context.Context, lines []repository.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `
		UPDATE products
		SET sales = sales + $1, stock = GREATEST(stock - $1, 0), updated_at = $2
		WHERE id = $3`

	ctx, done := database.TraceQuery(ctx, "products.record_sales", query)
	err := database.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, l := range lines {
			if _, err := tx.Exec(ctx, query, l.Quantity, now, l.ProductID); err != nil {
				return fmt.Errorf("record sales for %s: %w", l.ProductID, err)
			}
		}
		return nil
	})
	done(err)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Category,
		&p.ImageURLs, &p.Stock, &p.Sales, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// imageURLs keeps a nil slice from being written as SQL NULL.
func imageURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
