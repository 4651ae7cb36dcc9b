package domain

import (
	"strings"
	"time"
)

// Product categories.
const (
	CategoryElectronics = "electronics"
	CategoryFashion     = "fashion"
	CategoryHome        = "home"
	CategorySports      = "sports"
	CategoryBooks       = "books"
)

// Product statuses.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// LowStockThreshold is the stock level below which a product is flagged on
// the seller dashboard.
const LowStockThreshold = 10

type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	ImageURLs   []string  `json:"image_urls"`
	Stock       int       `json:"stock"`
	Sales       int       `json:"sales"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func Categories() []string {
	return []string{CategoryElectronics, CategoryFashion, CategoryHome, CategorySports, CategoryBooks}
}

// NormalizeCategory lowercases c and reports whether it is a known category.
func NormalizeCategory(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return c, false
}

func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

func (p *Product) IsLowStock() bool {
	return p.Stock < LowStockThreshold
}

// OwnedBy reports whether sellerID owns the product.
func (p *Product) OwnedBy(sellerID string) bool {
	return p.SellerID == sellerID
}

// ToggledStatus returns the status a toggle would move the product to.
func (p *Product) ToggledStatus() string {
	if p.IsActive() {
		return ProductStatusInactive
	}
	return ProductStatusActive
}

// PrimaryImage is the first image URL or "".
func (p *Product) PrimaryImage() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Snapshot is the view of p a cart line keeps.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductID: p.ID,
		SellerID:  p.SellerID,
		Title:     p.Name,
		ImageURL:  p.PrimaryImage(),
		UnitPrice: p.Price,
	}
}
