package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/repository"
	redisrepo "github.com/sofi161/martapp/internal/repository/redis"
	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/pkg/health"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/pagination"
)

// ============================================================================
// Mocks
// ============================================================================

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockProductRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	return m.Called(ctx, id, stock).Error(0)
}

func (m *mockProductRepository) CountBySeller(ctx context.Context, sellerID string) (int, int, error) {
	args := m.Called(ctx, sellerID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) RecordSales(ctx context.Context, lines []repository.SaleLine) error {
	return m.Called(ctx, lines).Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error) {
	args := m.Called(ctx, buyerID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID string, p pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, buyerID, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) ListBySeller(ctx context.Context, sellerID string, status *domain.OrderStatus, p pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, sellerID, status, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) ListBySellerSince(ctx context.Context, sellerID string, since time.Time) ([]domain.Order, error) {
	args := m.Called(ctx, sellerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) SellerStats(ctx context.Context, sellerID string) (domain.SellerOrderStats, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(domain.SellerOrderStats), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, *kafka.Event) error { return nil }

// ============================================================================
// Test helpers
// ============================================================================

const (
	buyerID   = "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c001"
	sellerID  = "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c002"
	productID = "0a6e3f4b-1111-4b7a-8c2d-5e6f7a8b9c01"
	orderID   = "9b8c7d6e-5f4a-4b3c-8d2e-1f0a9b8c7d01"
)

type testServer struct {
	handler  http.Handler
	products *mockProductRepository
	orders   *mockOrderRepository
	mr       *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := event.NewProducer(discardPublisher{}, logger)
	carts := redisrepo.NewCartStore(client, time.Hour)
	keys := redisrepo.NewCheckoutKeyStore(client, time.Hour)
	products := new(mockProductRepository)
	orders := new(mockOrderRepository)

	svc := Services{
		Carts:    service.NewCartService(carts, products, events, logger),
		Checkout: service.NewCheckoutService(carts, orders, keys, events, logger),
		Orders:   service.NewOrderService(orders, events, logger),
		Products: service.NewProductService(products, logger),
		Sellers:  service.NewSellerService(products, orders, logger),
	}
	h := NewRouter(svc, health.NewHandler(), RouterConfig{ServiceName: "martapp-test"}, logger)

	return &testServer{handler: h, products: products, orders: orders, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, userID, role string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var c cartResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &c))
	return c
}

func product() *domain.Product {
	return &domain.Product{
		ID:       productID,
		SellerID: sellerID,
		Name:     "Desk Lamp",
		Price:    1990,
		Category: domain.CategoryHome,
		Stock:    8,
		Status:   domain.ProductStatusActive,
	}
}
