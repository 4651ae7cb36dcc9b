package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/repository"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/logger"
	"github.com/sofi161/martapp/pkg/tracing"
)

// CheckoutResult is the order a checkout produced. Replayed is set when an
// earlier checkout with the same Idempotency-Key already created it.
type CheckoutResult struct {
	Order    *domain.Order
	Replayed bool
}

// CheckoutService turns a buyer's cart into an order.
type CheckoutService struct {
	carts  repository.CartStore
	orders repository.OrderRepository
	keys   repository.CheckoutKeyStore
	events *event.Producer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewCheckoutService(
	carts repository.CartStore,
	orders repository.OrderRepository,
	keys repository.CheckoutKeyStore,
	events *event.Producer,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:  carts,
		orders: orders,
		keys:   keys,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// Checkout creates an order from the buyer's cart and clears the cart. The
// order is persisted first; if that fails the cart is left as it was.
// Everything after the order exists is best-effort.
func (s *CheckoutService) Checkout(ctx context.Context, buyerID, idempotencyKey string) (res *CheckoutResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "checkout", "Checkout",
		attribute.String("buyer.id", buyerID),
		attribute.Bool("idempotency_key.present", idempotencyKey != ""),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if len(idempotencyKey) > domain.MaxIdempotencyKeyLen {
		return nil, apperrors.InvalidInput(fmt.Sprintf("idempotency key exceeds %d characters", domain.MaxIdempotencyKeyLen))
	}

	log := logger.WithContext(ctx, s.logger)

	// A successful checkout empties the cart, so a retried request must be
	// answered from the key store before the cart is looked at.
	if idempotencyKey != "" {
		if prior, ok := s.replay(ctx, buyerID, idempotencyKey); ok {
			checkouts.WithLabelValues(outcomeReplayed).Inc()
			return &CheckoutResult{Order: prior, Replayed: true}, nil
		}
	}

	cart, found, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		checkouts.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !found || cart.IsEmpty() {
		// The key store may have expired or missed the write; the order
		// table is authoritative.
		if idempotencyKey != "" {
			if prior, err := s.orders.GetByIdempotencyKey(ctx, buyerID, idempotencyKey); err == nil {
				checkouts.WithLabelValues(outcomeReplayed).Inc()
				return &CheckoutResult{Order: prior, Replayed: true}, nil
			}
		}
		checkouts.WithLabelValues(outcomeEmpty).Inc()
		return nil, apperrors.EmptyCart()
	}

	order := domain.NewOrderFromCart(s.newID(), cart, s.now())
	order.IdempotencyKey = idempotencyKey

	if err := s.orders.Create(ctx, order); err != nil {
		if idempotencyKey != "" && errors.Is(err, apperrors.ErrAlreadyExists) {
			prior, lookupErr := s.orders.GetByIdempotencyKey(ctx, buyerID, idempotencyKey)
			if lookupErr == nil {
				checkouts.WithLabelValues(outcomeReplayed).Inc()
				return &CheckoutResult{Order: prior, Replayed: true}, nil
			}
			log.WarnContext(ctx, "idempotent order lookup failed", slog.String("error", lookupErr.Error()))
		}
		checkouts.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("create order: %w", err)
	}

	if idempotencyKey != "" {
		if err := s.keys.Remember(ctx, buyerID, idempotencyKey, order.ID); err != nil {
			log.WarnContext(ctx, "failed to record checkout idempotency key",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.carts.Delete(ctx, buyerID); err != nil {
		log.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.events.PublishCartCleared(ctx, buyerID, event.ClearedByCheckout)
	}

	s.events.PublishOrderCreated(ctx, order)

	checkouts.WithLabelValues(outcomeCreated).Inc()
	checkoutAmount.Observe(float64(order.TotalAmount))
	span.SetAttributes(attribute.String("order.id", order.ID))

	log.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
		slog.Int64("total_amount", order.TotalAmount),
	)
	return &CheckoutResult{Order: order}, nil
}

// replay resolves a previously recorded key. Any failure is treated as a
// miss; the unique index on (buyer, key) still prevents a second order.
func (s *CheckoutService) replay(ctx context.Context, buyerID, key string) (*domain.Order, bool) {
	log := logger.WithContext(ctx, s.logger)

	orderID, found, err := s.keys.Lookup(ctx, buyerID, key)
	if err != nil {
		log.WarnContext(ctx, "checkout idempotency lookup failed", slog.String("error", err.Error()))
		return nil, false
	}
	if !found {
		return nil, false
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		log.WarnContext(ctx, "recorded checkout order not loadable",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return order, true
}
