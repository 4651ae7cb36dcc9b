package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the closed set of order states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var ErrUnknownStatus = errors.New("unknown order status")

// MaxIdempotencyKeyLen is the width of orders.idempotency_key.
const MaxIdempotencyKeyLen = 128

// ParseStatus accepts the current vocabulary plus the legacy spellings
// "completed" and "canceled", case-insensitively.
func ParseStatus(s string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return OrderStatusPending, nil
	case "delivered", "completed":
		return OrderStatusDelivered, nil
	case "cancelled", "canceled":
		return OrderStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// allowedTransitions lists where each state may move. Delivered and
// cancelled are terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID       string `json:"product_id"`
	SellerID        string `json:"seller_id"`
	Title           string `json:"title"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

// Subtotal is PriceAtPurchase × Quantity.
func (i OrderItem) Subtotal() int64 {
	return i.PriceAtPurchase * int64(i.Quantity)
}

type Order struct {
	ID             string      `json:"id"`
	BuyerID        string      `json:"buyer_id"`
	Items          []OrderItem `json:"items"`
	TotalAmount    int64       `json:"total_amount"`
	Status         OrderStatus `json:"status"`
	IdempotencyKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewOrderFromCart copies the cart's lines, in insertion order, into a
// pending order. TotalAmount is the cart's TotalPrice as is.
func NewOrderFromCart(id string, c Cart, now time.Time) *Order {
	lines := c.Lines()
	items := make([]OrderItem, 0, len(lines))
	for _, li := range lines {
		items = append(items, OrderItem{
			ProductID:       li.ProductID,
			SellerID:        li.SellerID,
			Title:           li.Title,
			Quantity:        li.Quantity,
			PriceAtPurchase: li.UnitPrice,
		})
	}
	return &Order{
		ID:          id,
		BuyerID:     c.UserID,
		Items:       items,
		TotalAmount: c.TotalPrice,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasSeller reports whether any line belongs to sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerItems returns only sellerID's lines.
func (o *Order) SellerItems(sellerID string) []OrderItem {
	var out []OrderItem
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			out = append(out, it)
		}
	}
	return out
}

// SellerTotal is the revenue sellerID earns from this order.
func (o *Order) SellerTotal(sellerID string) int64 {
	var total int64
	for _, it := range o.SellerItems(sellerID) {
		total += it.Subtotal()
	}
	return total
}

// VisibleTo reports whether the actor may read the order.
func (o *Order) VisibleTo(a Actor) bool {
	switch {
	case a.IsAdmin():
		return true
	case o.BuyerID == a.UserID:
		return true
	case a.Role == RoleSeller:
		return o.HasSeller(a.UserID)
	default:
		return false
	}
}

// CanBeFulfilledBy reports whether the actor may change the order status.
func (o *Order) CanBeFulfilledBy(a Actor) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleSeller && o.HasSeller(a.UserID)
}
