package domain

import "time"

// Dashboard list sizes.
const (
	DashboardRecentOrders   = 10
	DashboardLowStock       = 5
	DashboardRecentProducts = 5
	AnalyticsDays           = 7
	AnalyticsTopProducts    = 5
)

// DateLayout keys daily sales.
const DateLayout = "2006-01-02"

// SellerOrderStats is a seller's share of the order book. Orders count
// distinct orders with at least one of the seller's lines; revenue counts
// only those lines and skips cancelled orders.
type SellerOrderStats struct {
	TotalRevenue    int64 `json:"total_revenue"`
	PendingOrders   int   `json:"pending_orders"`
	DeliveredOrders int   `json:"delivered_orders"`
	CancelledOrders int   `json:"cancelled_orders"`
}

// SellerOrder is an order as one seller sees it.
type SellerOrder struct {
	ID          string      `json:"id"`
	BuyerID     string      `json:"buyer_id"`
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
	SellerTotal int64       `json:"seller_total"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ViewForSeller strips o down to sellerID's lines.
func ViewForSeller(o *Order, sellerID string) SellerOrder {
	return SellerOrder{
		ID:          o.ID,
		BuyerID:     o.BuyerID,
		Status:      o.Status,
		Items:       o.SellerItems(sellerID),
		SellerTotal: o.SellerTotal(sellerID),
		CreatedAt:   o.CreatedAt,
	}
}

type Dashboard struct {
	TotalProducts  int              `json:"total_products"`
	ActiveProducts int              `json:"active_products"`
	Stats          SellerOrderStats `json:"stats"`
	RecentOrders   []SellerOrder    `json:"recent_orders"`
	LowStock       []Product        `json:"low_stock"`
	RecentProducts []Product        `json:"recent_products"`
}

type DailySales struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Orders  int    `json:"orders"`
}

type Analytics struct {
	Summary     SellerOrderStats `json:"summary"`
	Daily       []DailySales     `json:"daily"`
	TopProducts []Product        `json:"top_products"`
}

// SummarizeSellerOrders computes stats from orders already loaded, such as
// the analytics window.
func SummarizeSellerOrders(orders []Order, sellerID string) SellerOrderStats {
	var s SellerOrderStats
	for i := range orders {
		o := &orders[i]
		if !o.HasSeller(sellerID) {
			continue
		}
		switch o.Status {
		case OrderStatusPending:
			s.PendingOrders++
		case OrderStatusDelivered:
			s.DeliveredOrders++
		case OrderStatusCancelled:
			s.CancelledOrders++
			continue
		}
		s.TotalRevenue += o.SellerTotal(sellerID)
	}
	return s
}

// SalesByDay buckets sellerID's revenue over the days calendar days ending
// with now (UTC). Every day is present, oldest first, even with no sales.
// Cancelled orders and orders outside the window are ignored.
func SalesByDay(orders []Order, sellerID string, now time.Time, days int) []DailySales {
	if days < 1 {
		days = 1
	}
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	out := make([]DailySales, days)
	index := make(map[string]int, days)
	for i := range out {
		key := start.AddDate(0, 0, i).Format(DateLayout)
		out[i].Date = key
		index[key] = i
	}

	for i := range orders {
		o := &orders[i]
		if o.Status == OrderStatusCancelled {
			continue
		}
		if !o.HasSeller(sellerID) {
			continue
		}
		idx, ok := index[o.CreatedAt.UTC().Format(DateLayout)]
		if !ok {
			continue
		}
		out[idx].Revenue += o.SellerTotal(sellerID)
		out[idx].Orders++
	}
	return out
}

// AnalyticsWindowStart is the first instant counted by SalesByDay.
func AnalyticsWindowStart(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
}
