package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/pagination"
)

func newTestOrderService() (*OrderService, *mockOrderRepository, *recordingPublisher) {
	repo := new(mockOrderRepository)
	events, pub := newTestEvents()
	return NewOrderService(repo, events, newTestLogger()), repo, pub
}

// twoSellerOrder has one line from sellerID and one from seller2ID.
func twoSellerOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:      orderID,
		BuyerID: buyerID,
		Items: []domain.OrderItem{
			{ProductID: product1, SellerID: sellerID, Title: "A", Quantity: 2, PriceAtPurchase: 1000},
			{ProductID: product2, SellerID: seller2ID, Title: "B", Quantity: 1, PriceAtPurchase: 2500},
		},
		TotalAmount: 4500,
		Status:      status,
		CreatedAt:   fixedNow,
	}
}

var (
	buyer    = domain.Actor{UserID: buyerID, Role: domain.RoleBuyer}
	seller   = domain.Actor{UserID: sellerID, Role: domain.RoleSeller}
	outsider = domain.Actor{UserID: "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c0ff", Role: domain.RoleSeller}
	admin    = domain.Actor{UserID: "6f1c2a3e-0b5d-4c59-9d2e-0f3b8a41c0aa", Role: domain.RoleAdmin}
)

func TestOrderService_GetOrder_Visibility(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		visible bool
	}{
		{"buyer", buyer, true},
		{"seller with a line", seller, true},
		{"admin", admin, true},
		{"unrelated seller", outsider, false},
		{"other buyer", domain.Actor{UserID: outsider.UserID, Role: domain.RoleBuyer}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestOrderService()
			ctx := context.Background()
			repo.On("GetByID", ctx, orderID).Return(twoSellerOrder(domain.OrderStatusPending), nil)

			o, err := svc.GetOrder(ctx, tt.actor, orderID)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, orderID, o.ID)
				return
			}
			assert.True(t, errors.Is(err, apperrors.ErrNotFound))
		})
	}
}

func TestOrderService_ListBuyerOrders(t *testing.T) {
	svc, repo, _ := newTestOrderService()
	ctx := context.Background()
	page := pagination.New(2, 1)

	repo.On("ListByBuyer", ctx, buyerID, page).Return([]domain.Order{*twoSellerOrder(domain.OrderStatusPending)}, 3, nil)

	res, err := svc.ListBuyerOrders(ctx, buyerID, page)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 2, res.Page)
}

func TestOrderService_ListSellerOrders_TrimsToSellerLines(t *testing.T) {
	svc, repo, _ := newTestOrderService()
	ctx := context.Background()
	page := pagination.New(1, 20)

	repo.On("ListBySeller", ctx, sellerID, (*domain.OrderStatus)(nil), page).
		Return([]domain.Order{*twoSellerOrder(domain.OrderStatusPending)}, 1, nil)

	res, err := svc.ListSellerOrders(ctx, sellerID, "", page)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	view := res.Items[0]
	require.Len(t, view.Items, 1)
	assert.Equal(t, product1, view.Items[0].ProductID)
	assert.Equal(t, int64(2000), view.SellerTotal)
}

func TestOrderService_ListSellerOrders_StatusFilter(t *testing.T) {
	svc, repo, _ := newTestOrderService()
	ctx := context.Background()
	page := pagination.New(1, 20)

	repo.On("ListBySeller", ctx, sellerID, mock.MatchedBy(func(s *domain.OrderStatus) bool {
		return s != nil && *s == domain.OrderStatusDelivered
	}), page).Return([]domain.Order{}, 0, nil)

	_, err := svc.ListSellerOrders(ctx, sellerID, "completed", page)
	require.NoError(t, err)
	repo.AssertExpectations(t)

	_, err = svc.ListSellerOrders(ctx, sellerID, "shipped", page)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestOrderService_GetSellerOrder(t *testing.T) {
	svc, repo, _ := newTestOrderService()
	ctx := context.Background()
	repo.On("GetByID", ctx, orderID).Return(twoSellerOrder(domain.OrderStatusPending), nil)

	view, err := svc.GetSellerOrder(ctx, seller, orderID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, int64(2000), view.SellerTotal)

	view, err = svc.GetSellerOrder(ctx, admin, orderID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, int64(4500), view.SellerTotal)

	_, err = svc.GetSellerOrder(ctx, outsider, orderID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderService_UpdateStatus(t *testing.T) {
	svc, repo, pub := newTestOrderService()
	ctx := context.Background()

	updated := twoSellerOrder(domain.OrderStatusDelivered)
	repo.On("GetByID", ctx, orderID).Return(twoSellerOrder(domain.OrderStatusPending), nil)
	repo.On("UpdateStatus", ctx, orderID, domain.OrderStatusPending, domain.OrderStatusDelivered).Return(updated, nil)

	o, err := svc.UpdateStatus(ctx, seller, orderID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, o.Status)
	assert.Equal(t, []string{event.TopicOrderStatusChanged}, pub.Topics())
	repo.AssertExpectations(t)
}

func TestOrderService_UpdateStatus_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		current domain.OrderStatus
		target  string
		want    error
	}{
		{"buyer cannot fulfil", buyer, domain.OrderStatusPending, "delivered", apperrors.ErrForbidden},
		{"unrelated seller sees nothing", outsider, domain.OrderStatusPending, "delivered", apperrors.ErrNotFound},
		{"terminal state", seller, domain.OrderStatusCancelled, "delivered", apperrors.ErrInvalidState},
		{"same state", admin, domain.OrderStatusPending, "pending", apperrors.ErrInvalidState},
		{"back to pending", admin, domain.OrderStatusDelivered, "pending", apperrors.ErrInvalidState},
		{"unknown status", seller, domain.OrderStatusPending, "shipped", apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, pub := newTestOrderService()
			ctx := context.Background()
			repo.On("GetByID", ctx, orderID).Return(twoSellerOrder(tt.current), nil)

			_, err := svc.UpdateStatus(ctx, tt.actor, orderID, tt.target)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, pub.Topics())
		})
	}
}

func TestOrderService_UpdateStatus_LostRace(t *testing.T) {
	svc, repo, pub := newTestOrderService()
	ctx := context.Background()

	repo.On("GetByID", ctx, orderID).Return(twoSellerOrder(domain.OrderStatusPending), nil)
	repo.On("UpdateStatus", ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled).
		Return(nil, apperrors.Conflict("order status changed concurrently"))

	_, err := svc.UpdateStatus(ctx, admin, orderID, "canceled")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, pub.Topics())
}
