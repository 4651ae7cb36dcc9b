package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	apperrors "github.com/sofi161/martapp/pkg/errors"
)

const orderID = "9b8c7d6e-5f4a-4b3c-8d2e-1f0a9b8c7d01"

type checkoutFixture struct {
	svc    *CheckoutService
	carts  *mockCartStore
	orders *mockOrderRepository
	keys   *mockKeyStore
	pub    *recordingPublisher
}

func newCheckoutFixture() checkoutFixture {
	f := checkoutFixture{
		carts:  new(mockCartStore),
		orders: new(mockOrderRepository),
		keys:   new(mockKeyStore),
	}
	events, pub := newTestEvents()
	f.pub = pub
	f.svc = NewCheckoutService(f.carts, f.orders, f.keys, events, newTestLogger())
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.newID = func() string { return orderID }
	return f
}

func TestCheckout_CreatesOrderAndClearsCart(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	p1 := activeProduct(product1, sellerID, 1000)
	cart, err := domain.AddItem(domain.NewCart(buyerID), p1.Snapshot(), 2, fixedNow)
	require.NoError(t, err)
	cart, err = domain.AddItem(cart, activeProduct(product2, seller2ID, 2500).Snapshot(), 1, fixedNow)
	require.NoError(t, err)

	f.carts.On("Get", mock.Anything, buyerID).Return(cart, true, nil)
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil)

	res, err := f.svc.Checkout(ctx, buyerID, "")
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.False(t, res.Replayed)

	o := res.Order
	assert.Equal(t, orderID, o.ID)
	assert.Equal(t, buyerID, o.BuyerID)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, int64(4500), o.TotalAmount)
	assert.Equal(t, fixedNow, o.CreatedAt)
	require.Len(t, o.Items, 2)
	assert.Equal(t, product1, o.Items[0].ProductID)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, int64(1000), o.Items[0].PriceAtPurchase)
	assert.Equal(t, seller2ID, o.Items[1].SellerID)

	assert.Equal(t, []string{event.TopicCartCleared, event.TopicOrderCreated}, f.pub.Topics())
	f.keys.AssertNotCalled(t, "Remember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.carts.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.carts.On("Get", mock.Anything, buyerID).Return(domain.Cart{}, false, nil)

	res, err := f.svc.Checkout(ctx, buyerID, "")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.Topics())
}

func TestCheckout_StoredEmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.carts.On("Get", mock.Anything, buyerID).Return(domain.NewCart(buyerID), true, nil)

	_, err := f.svc.Checkout(ctx, buyerID, "")
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_PersistFailureKeepsCart(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.carts.On("Get", mock.Anything, buyerID).Return(cartWith(t, activeProduct(product1, sellerID, 1000)), true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	res, err := f.svc.Checkout(ctx, buyerID, "")
	require.Error(t, err)
	assert.Nil(t, res)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.Topics())
}

func TestCheckout_ClearFailureStillReturnsOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.carts.On("Get", mock.Anything, buyerID).Return(cartWith(t, activeProduct(product1, sellerID, 1000)), true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(errors.New("redis down"))

	res, err := f.svc.Checkout(ctx, buyerID, "")
	require.NoError(t, err)
	assert.Equal(t, orderID, res.Order.ID)
	assert.Equal(t, []string{event.TopicOrderCreated}, f.pub.Topics())
}

func TestCheckout_RecordsIdempotencyKey(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return("", false, nil)
	f.carts.On("Get", mock.Anything, buyerID).Return(cartWith(t, activeProduct(product1, sellerID, 1000)), true, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.IdempotencyKey == "key-1"
	})).Return(nil)
	f.keys.On("Remember", mock.Anything, buyerID, "key-1", orderID).Return(nil)
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil)

	res, err := f.svc.Checkout(ctx, buyerID, "key-1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	f.keys.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestCheckout_ReplaysKnownKey(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	prior := &domain.Order{ID: orderID, BuyerID: buyerID, Status: domain.OrderStatusPending}
	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return(orderID, true, nil)
	f.orders.On("GetByID", mock.Anything, orderID).Return(prior, nil)

	res, err := f.svc.Checkout(ctx, buyerID, "key-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Same(t, prior, res.Order)
	f.carts.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.Topics())
}

func TestCheckout_ReplaysFromOrderTableWhenCartEmpty(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	prior := &domain.Order{ID: orderID, BuyerID: buyerID, Status: domain.OrderStatusPending}
	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return("", false, errors.New("redis down"))
	f.carts.On("Get", mock.Anything, buyerID).Return(domain.Cart{}, false, nil)
	f.orders.On("GetByIdempotencyKey", mock.Anything, buyerID, "key-1").Return(prior, nil)

	res, err := f.svc.Checkout(ctx, buyerID, "key-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, orderID, res.Order.ID)
}

func TestCheckout_EmptyCartWithUnknownKey(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return("", false, nil)
	f.carts.On("Get", mock.Anything, buyerID).Return(domain.Cart{}, false, nil)
	f.orders.On("GetByIdempotencyKey", mock.Anything, buyerID, "key-1").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Checkout(ctx, buyerID, "key-1")
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
}

func TestCheckout_ConcurrentDuplicateKeyReplays(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	winner := &domain.Order{ID: "5d4c3b2a-0000-4000-8000-000000000001", BuyerID: buyerID}
	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return("", false, nil)
	f.carts.On("Get", mock.Anything, buyerID).Return(cartWith(t, activeProduct(product1, sellerID, 1000)), true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(apperrors.AlreadyExists("order", "idempotency_key", "key-1"))
	f.orders.On("GetByIdempotencyKey", mock.Anything, buyerID, "key-1").Return(winner, nil)

	res, err := f.svc.Checkout(ctx, buyerID, "key-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, winner.ID, res.Order.ID)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCheckout_RejectsKeyWiderThanColumn(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.Checkout(context.Background(), buyerID, strings.Repeat("k", domain.MaxIdempotencyKeyLen+1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.carts.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_RememberFailureIsBestEffort(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.keys.On("Lookup", mock.Anything, buyerID, "key-1").Return("", false, nil)
	f.carts.On("Get", mock.Anything, buyerID).Return(cartWith(t, activeProduct(product1, sellerID, 1000)), true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.keys.On("Remember", mock.Anything, buyerID, "key-1", orderID).Return(errors.New("redis down"))
	f.carts.On("Delete", mock.Anything, buyerID).Return(nil)

	res, err := f.svc.Checkout(ctx, buyerID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, orderID, res.Order.ID)
	f.carts.AssertExpectations(t)
}
