package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
)

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_CART", decode(t, rec).Error.Code)
	s.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_CreatesOrderThenReplays(t *testing.T) {
	s := newTestServer(t)
	s.products.On("GetByID", mock.Anything, productID).Return(product(), nil)

	var created *domain.Order
	s.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Order) }).
		Return(nil).Once()

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", buyerID, "", map[string]any{"product_id": productID, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil, HeaderIdempotencyKey, "attempt-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(HeaderReplayed))

	var body checkoutResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.NotNil(t, created)
	assert.Equal(t, created.ID, body.OrderID)
	assert.Equal(t, int64(3*1990), body.Order.TotalAmount)
	assert.Equal(t, domain.OrderStatusPending, body.Order.Status)
	require.Len(t, body.Order.Items, 1)
	assert.Equal(t, sellerID, body.Order.Items[0].SellerID)

	// The cart is gone and the key is remembered.
	assert.False(t, s.mr.Exists("cart:"+buyerID))
	stored, err := s.mr.Get("idem:checkout:" + buyerID + ":attempt-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored)

	s.orders.On("GetByID", mock.Anything, created.ID).Return(created, nil)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil, HeaderIdempotencyKey, "attempt-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(HeaderReplayed))
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, created.ID, body.OrderID)
	s.orders.AssertNumberOfCalls(t, "Create", 1)
}

func TestCheckout_PersistFailureKeepsCart(t *testing.T) {
	s := newTestServer(t)
	s.products.On("GetByID", mock.Anything, productID).Return(product(), nil)
	s.orders.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset by peer"))

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", buyerID, "", map[string]any{"product_id": productID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.NotContains(t, env.Error.Message, "connection reset")

	assert.True(t, s.mr.Exists("cart:"+buyerID))
}

func TestCheckout_RejectsOversizedKey(t *testing.T) {
	s := newTestServer(t)

	for _, n := range []int{domain.MaxIdempotencyKeyLen + 1, 256} {
		rec := s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil, HeaderIdempotencyKey, strings.Repeat("k", n))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "key length %d", n)
	}
	s.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_AcceptsKeyAtColumnWidth(t *testing.T) {
	s := newTestServer(t)
	key := strings.Repeat("k", domain.MaxIdempotencyKeyLen)
	s.products.On("GetByID", mock.Anything, productID).Return(product(), nil)
	s.orders.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.IdempotencyKey == key
	})).Return(nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", buyerID, "", map[string]any{"product_id": productID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", buyerID, "", nil, HeaderIdempotencyKey, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.orders.AssertExpectations(t)
	assert.True(t, s.mr.Exists("idem:checkout:"+buyerID+":"+key))
}
