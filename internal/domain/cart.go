package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Cart limits.
const (
	MaxCartLines    = 50
	MaxLineQuantity = 100
)

var (
	ErrTooManyLines    = errors.New("cart line limit reached")
	ErrQuantityTooHigh = errors.New("line quantity limit exceeded")
)

// LineItem is one product line in a cart. Title, UnitPrice, SellerID and
// ImageURL are snapshots taken when the product was first added.
type LineItem struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Position  int    `json:"position"`
}

// Cart is a user's session cart. TotalQuantity and TotalPrice are derived
// from Items on every mutation and never set directly.
type Cart struct {
	UserID        string              `json:"user_id"`
	Items         map[string]LineItem `json:"items"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalPrice    int64               `json:"total_price"`
	NextPosition  int                 `json:"next_position"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ProductSnapshot is what the cart copies from the catalog on add.
type ProductSnapshot struct {
	ProductID string
	SellerID  string
	Title     string
	ImageURL  string
	UnitPrice int64
}

func NewCart(userID string) Cart {
	return Cart{UserID: userID, Items: map[string]LineItem{}}
}

// IsEmpty reports whether the cart holds no units.
func (c Cart) IsEmpty() bool {
	return c.TotalQuantity == 0
}

// Lines returns the items in insertion order.
func (c Cart) Lines() []LineItem {
	lines := make([]LineItem, 0, len(c.Items))
	for _, li := range c.Items {
		lines = append(lines, li)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	return lines
}

// Has reports whether productID has a line in the cart.
func (c Cart) Has(productID string) bool {
	_, ok := c.Items[productID]
	return ok
}

// AddItem returns a copy of c with quantity units of p added. A repeated
// add merges into the existing line and keeps its original price snapshot.
func AddItem(c Cart, p ProductSnapshot, quantity int, now time.Time) (Cart, error) {
	quantity = normalizeQuantity(quantity)
	next := c.clone()

	line, exists := next.Items[p.ProductID]
	if !exists {
		if len(next.Items) >= MaxCartLines {
			return c, fmt.Errorf("%w: at most %d products", ErrTooManyLines, MaxCartLines)
		}
		line = LineItem{
			ProductID: p.ProductID,
			SellerID:  p.SellerID,
			Title:     p.Title,
			ImageURL:  p.ImageURL,
			UnitPrice: p.UnitPrice,
			Position:  next.NextPosition,
		}
		next.NextPosition++
	}

	if quantity > MaxLineQuantity-line.Quantity {
		return c, fmt.Errorf("%w: at most %d units per product", ErrQuantityTooHigh, MaxLineQuantity)
	}
	line.Quantity += quantity
	line.LineTotal = line.UnitPrice * int64(line.Quantity)
	next.Items[p.ProductID] = line

	next.recalculate(now)
	return next, nil
}

// UpdateItem sets the quantity of an existing line. changed is false, and c
// is returned as is, when productID has no line.
func UpdateItem(c Cart, productID string, quantity int, now time.Time) (next Cart, changed bool, err error) {
	line, ok := c.Items[productID]
	if !ok {
		return c, false, nil
	}
	quantity = normalizeQuantity(quantity)
	if quantity > MaxLineQuantity {
		return c, false, fmt.Errorf("%w: at most %d units per product", ErrQuantityTooHigh, MaxLineQuantity)
	}

	next = c.clone()
	line.Quantity = quantity
	line.LineTotal = line.UnitPrice * int64(quantity)
	next.Items[productID] = line

	next.recalculate(now)
	return next, true, nil
}

// RemoveItem drops the line for productID. changed is false when there was
// nothing to remove.
func RemoveItem(c Cart, productID string, now time.Time) (next Cart, changed bool) {
	if _, ok := c.Items[productID]; !ok {
		return c, false
	}
	next = c.clone()
	delete(next.Items, productID)
	next.recalculate(now)
	return next, true
}

func normalizeQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

func (c Cart) clone() Cart {
	items := make(map[string]LineItem, len(c.Items)+1)
	for k, v := range c.Items {
		items[k] = v
	}
	c.Items = items
	return c
}

func (c *Cart) recalculate(now time.Time) {
	c.TotalQuantity = 0
	c.TotalPrice = 0
	for _, li := range c.Items {
		c.TotalQuantity += li.Quantity
		c.TotalPrice += li.LineTotal
	}
	c.UpdatedAt = now
}
