package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/repository"
	"github.com/sofi161/martapp/pkg/logger"
	"github.com/sofi161/martapp/pkg/pagination"
)

// SellerService builds the seller dashboard and sales analytics. Revenue is
// attributed per order line, so a seller only sees their own share of a
// multi-seller order.
type SellerService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewSellerService(products repository.ProductRepository, orders repository.OrderRepository, logger *slog.Logger) *SellerService {
	return &SellerService{
		products: products,
		orders:   orders,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SellerService) Dashboard(ctx context.Context, sellerID string) (*domain.Dashboard, error) {
	total, active, err := s.products.CountBySeller(ctx, sellerID)
	if err != nil {
		return nil, s.fail(ctx, "dashboard", sellerID, fmt.Errorf("count products: %w", err))
	}

	stats, err := s.orders.SellerStats(ctx, sellerID)
	if err != nil {
		return nil, s.fail(ctx, "dashboard", sellerID, fmt.Errorf("seller stats: %w", err))
	}

	recent, _, err := s.orders.ListBySeller(ctx, sellerID, nil, pagination.New(1, domain.DashboardRecentOrders))
	if err != nil {
		return nil, s.fail(ctx, "dashboard", sellerID, fmt.Errorf("recent orders: %w", err))
	}
	views := make([]domain.SellerOrder, 0, len(recent))
	for i := range recent {
		views = append(views, domain.ViewForSeller(&recent[i], sellerID))
	}

	threshold := domain.LowStockThreshold
	lowStock, _, err := s.products.List(ctx, repository.ProductFilter{
		SellerID: &sellerID,
		MaxStock: &threshold,
		Sort:     repository.SortStockAsc,
		Params:   pagination.New(1, domain.DashboardLowStock),
	})
	if err != nil {
		return nil, s.fail(ctx, "dashboard", sellerID, fmt.Errorf("low stock products: %w", err))
	}

	recentProducts, _, err := s.products.List(ctx, repository.ProductFilter{
		SellerID: &sellerID,
		Sort:     repository.SortNewest,
		Params:   pagination.New(1, domain.DashboardRecentProducts),
	})
	if err != nil {
		return nil, s.fail(ctx, "dashboard", sellerID, fmt.Errorf("recent products: %w", err))
	}

	return &domain.Dashboard{
		TotalProducts:  total,
		ActiveProducts: active,
		Stats:          stats,
		RecentOrders:   views,
		LowStock:       nonNil(lowStock),
		RecentProducts: nonNil(recentProducts),
	}, nil
}

// Analytics returns the seller's totals over the last AnalyticsDays, the
// daily sales for the same window (oldest first) and the best-selling
// products.
func (s *SellerService) Analytics(ctx context.Context, sellerID string) (*domain.Analytics, error) {
	now := s.now()

	orders, err := s.orders.ListBySellerSince(ctx, sellerID, domain.AnalyticsWindowStart(now, domain.AnalyticsDays))
	if err != nil {
		return nil, s.fail(ctx, "analytics", sellerID, fmt.Errorf("orders in window: %w", err))
	}

	top, _, err := s.products.List(ctx, repository.ProductFilter{
		SellerID: &sellerID,
		Sort:     repository.SortBestSell,
		Params:   pagination.New(1, domain.AnalyticsTopProducts),
	})
	if err != nil {
		return nil, s.fail(ctx, "analytics", sellerID, fmt.Errorf("top products: %w", err))
	}

	a := &domain.Analytics{
		Summary:     domain.SummarizeSellerOrders(orders, sellerID),
		Daily:       domain.SalesByDay(orders, sellerID, now, domain.AnalyticsDays),
		TopProducts: nonNil(top),
	}
	logger.WithContext(ctx, s.logger).DebugContext(ctx, "seller analytics computed",
		slog.String("seller_id", sellerID),
		slog.Int("orders", len(orders)),
		slog.Int64("revenue", a.Summary.TotalRevenue),
	)
	return a, nil
}

func (s *SellerService) fail(ctx context.Context, op, sellerID string, err error) error {
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, op+" failed",
		slog.String("seller_id", sellerID),
		slog.String("error", err.Error()),
	)
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
