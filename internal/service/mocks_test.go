package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/repository"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/pagination"
)

// --- Mocks ---

type mockCartStore struct {
	mock.Mock
}

func (m *mockCartStore) Get(ctx context.Context, userID string) (domain.Cart, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Cart), args.Bool(1), args.Error(2)
}

func (m *mockCartStore) Save(ctx context.Context, cart domain.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockCartStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

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

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
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

type mockKeyStore struct {
	mock.Mock
}

func (m *mockKeyStore) Lookup(ctx context.Context, buyerID, key string) (string, bool, error) {
	args := m.Called(ctx, buyerID, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockKeyStore) Remember(ctx context.Context, buyerID, key, orderID string) error {
	return m.Called(ctx, buyerID, key, orderID).Error(0)
}

// --- Test Helpers ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*kafka.Event
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, e *kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvents() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

const (
	buyerID   = "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c001"
	sellerID  = "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c002"
	seller2ID = "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c003"
	product1  = "0a6e3f4b-1111-4b7a-8c2d-5e6f7a8b9c01"
	product2  = "0a6e3f4b-2222-4b7a-8c2d-5e6f7a8b9c02"
)

func activeProduct(id, seller string, price int64) *domain.Product {
	return &domain.Product{
		ID:       id,
		SellerID: seller,
		Name:     "Product",
		Price:    price,
		Category: domain.CategoryBooks,
		Stock:    20,
		Status:   domain.ProductStatusActive,
	}
}

func cartWith(t *testing.T, items ...*domain.Product) domain.Cart {
	t.Helper()
	c := domain.NewCart(buyerID)
	for _, p := range items {
		var err error
		c, err = domain.AddItem(c, p.Snapshot(), 1, fixedNow)
		require.NoError(t, err)
	}
	return c
}
