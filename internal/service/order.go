package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/repository"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/logger"
	"github.com/sofi161/martapp/pkg/pagination"
)

type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
}

type OrderService struct {
	orders repository.OrderRepository
	events *event.Producer
	logger *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, events *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, events: events, logger: logger}
}

// GetOrder returns the order if the actor may see it. Orders the actor has
// no part in are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(actor) {
		return nil, apperrors.NotFound("order", id)
	}
	return order, nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string, p pagination.Params) (pagination.Result[domain.Order], error) {
	orders, total, err := s.orders.ListByBuyer(ctx, buyerID, p)
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list buyer orders: %w", err)
	}
	return pagination.NewResult(orders, total, p), nil
}

// ListSellerOrders pages through orders holding the seller's lines, each
// trimmed to those lines. rawStatus may be empty.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID, rawStatus string, p pagination.Params) (pagination.Result[domain.SellerOrder], error) {
	var status *domain.OrderStatus
	if rawStatus != "" {
		st, err := domain.ParseStatus(rawStatus)
		if err != nil {
			return pagination.Result[domain.SellerOrder]{}, apperrors.InvalidInput(err.Error())
		}
		status = &st
	}

	orders, total, err := s.orders.ListBySeller(ctx, sellerID, status, p)
	if err != nil {
		return pagination.Result[domain.SellerOrder]{}, fmt.Errorf("list seller orders: %w", err)
	}

	views := make([]domain.SellerOrder, 0, len(orders))
	for i := range orders {
		views = append(views, domain.ViewForSeller(&orders[i], sellerID))
	}
	return pagination.NewResult(views, total, p), nil
}

// GetSellerOrder returns the seller's view of one order. Admins see every
// line.
func (s *OrderService) GetSellerOrder(ctx context.Context, actor domain.Actor, id string) (domain.SellerOrder, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.SellerOrder{}, err
	}
	if actor.IsAdmin() {
		return domain.SellerOrder{
			ID:          order.ID,
			BuyerID:     order.BuyerID,
			Status:      order.Status,
			Items:       order.Items,
			SellerTotal: order.TotalAmount,
			CreatedAt:   order.CreatedAt,
		}, nil
	}
	if !order.HasSeller(actor.UserID) {
		return domain.SellerOrder{}, apperrors.NotFound("order", id)
	}
	return domain.ViewForSeller(order, actor.UserID), nil
}

// UpdateStatus moves an order along the fulfilment lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id, rawStatus string) (*domain.Order, error) {
	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.CanBeFulfilledBy(actor) {
		if order.VisibleTo(actor) {
			return nil, apperrors.Forbidden("only the fulfilling seller may change the order status")
		}
		return nil, apperrors.NotFound("order", id)
	}

	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("order", string(from), string(target))
	}

	updated, err := s.orders.UpdateStatus(ctx, id, from, target)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	orderTransitions.WithLabelValues(string(from), string(target)).Inc()
	s.events.PublishOrderStatusChanged(ctx, updated, from, actor.UserID)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order status changed",
		slog.String("order_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
	)
	return updated, nil
}
