package repository

import (
	"context"
	"time"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/pkg/pagination"
)

// Product sort orders.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortStockAsc  = "stock_asc"
	SortBestSell  = "sales_desc"
)

// ProductFilter defines filter criteria for listing products. Nil fields
// are not filtered on.
type ProductFilter struct {
	SellerID *string
	Category *string
	Search   *string
	Status   *string
	MinPrice *int64
	MaxPrice *int64
	// MaxStock keeps products with stock strictly below it.
	MaxStock *int
	Sort     string
	pagination.Params
}

// SaleLine is one product's share of a completed checkout.
type SaleLine struct {
	ProductID string
	Quantity  int
}

// ProductRepository is the catalog store.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	// GetByID returns apperrors.ErrNotFound when no product matches.
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateStock(ctx context.Context, id string, stock int) error
	// CountBySeller returns the seller's total and active product counts.
	CountBySeller(ctx context.Context, sellerID string) (total, active int, err error)
	// RecordSales adds sold units to each product's sales counter and takes
	// them off stock, never below zero, in one transaction.
	RecordSales(ctx context.Context, lines []SaleLine) error
}

// OrderRepository is the order store.
type OrderRepository interface {
	// Create inserts the order and its items in one transaction. A repeated
	// (buyer, idempotency key) pair yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, p pagination.Params) ([]domain.Order, int, error)
	// ListBySeller returns orders containing at least one of the seller's
	// lines, newest first, with every line of each order.
	ListBySeller(ctx context.Context, sellerID string, status *domain.OrderStatus, p pagination.Params) ([]domain.Order, int, error)
	ListBySellerSince(ctx context.Context, sellerID string, since time.Time) ([]domain.Order, error)
	SellerStats(ctx context.Context, sellerID string) (domain.SellerOrderStats, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// apperrors.ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// CartStore keeps one cart per user between requests.
type CartStore interface {
	// Get reports found=false when the user has no stored cart.
	Get(ctx context.Context, userID string) (cart domain.Cart, found bool, err error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// CheckoutKeyStore maps a buyer's Idempotency-Key to the order it created.
type CheckoutKeyStore interface {
	Lookup(ctx context.Context, buyerID, key string) (orderID string, found bool, err error)
	Remember(ctx context.Context, buyerID, key, orderID string) error
}
