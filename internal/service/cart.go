package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/repository"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/logger"
)

// AddItemInput is the body of POST /cart/items. A missing or unusable
// quantity means one unit.
type AddItemInput struct {
	ProductID string   `json:"product_id" validate:"required"`
	Quantity  Quantity `json:"quantity" validate:"lte=100"`
}

type UpdateItemInput struct {
	Quantity Quantity `json:"quantity" validate:"lte=100"`
}

// CartService applies cart commands to the stored cart. One mutator per
// cart at a time is assumed.
type CartService struct {
	carts    repository.CartStore
	products repository.ProductRepository
	events   *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

func NewCartService(carts repository.CartStore, products repository.ProductRepository, events *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the stored cart, or an empty one.
func (s *CartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, found, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	if !found {
		return domain.NewCart(userID), nil
	}
	return cart, nil
}

// AddItem snapshots the product into the cart, merging with an existing
// line for the same product.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddItemInput) (domain.Cart, error) {
	product, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Cart{}, apperrors.NotFound("product", in.ProductID)
		}
		return domain.Cart{}, fmt.Errorf("find product: %w", err)
	}
	if !product.IsActive() {
		return domain.Cart{}, apperrors.InvalidInput("product is not available")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	next, err := domain.AddItem(cart, product.Snapshot(), int(in.Quantity), s.now())
	if err != nil {
		return domain.Cart{}, limitError(err)
	}
	if err := s.save(ctx, "add", next); err != nil {
		return domain.Cart{}, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "item added to cart",
		slog.String("product_id", in.ProductID),
		slog.Int("quantity", next.Items[in.ProductID].Quantity),
		slog.Int64("total_price", next.TotalPrice),
	)
	return next, nil
}

// UpdateItem sets a line's quantity. Updating a product that is not in the
// cart returns the cart unchanged.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, in UpdateItemInput) (domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	next, changed, err := domain.UpdateItem(cart, productID, int(in.Quantity), s.now())
	if err != nil {
		return domain.Cart{}, limitError(err)
	}
	if !changed {
		cartMutations.WithLabelValues("update", "false").Inc()
		return cart, nil
	}
	if err := s.save(ctx, "update", next); err != nil {
		return domain.Cart{}, err
	}
	return next, nil
}

// RemoveItem drops a line. Removing a product that is not in the cart
// returns the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	next, changed := domain.RemoveItem(cart, productID, s.now())
	if !changed {
		cartMutations.WithLabelValues("remove", "false").Inc()
		return cart, nil
	}
	if err := s.save(ctx, "remove", next); err != nil {
		return domain.Cart{}, err
	}
	return next, nil
}

// ClearCart deletes the stored cart. reason is one of the event.ClearedBy*
// constants.
func (s *CartService) ClearCart(ctx context.Context, userID, reason string) error {
	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	cartMutations.WithLabelValues("clear", "true").Inc()
	s.events.PublishCartCleared(ctx, userID, reason)
	return nil
}

func (s *CartService) save(ctx context.Context, op string, cart domain.Cart) error {
	if err := s.carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	cartMutations.WithLabelValues(op, "true").Inc()
	s.events.PublishCartUpdated(ctx, cart)
	return nil
}

func limitError(err error) error {
	if errors.Is(err, domain.ErrTooManyLines) || errors.Is(err, domain.ErrQuantityTooHigh) {
		return apperrors.InvalidInput(err.Error())
	}
	return err
}
