package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/logger"
)

// Kafka topics for marketplace domain events.
var (
	TopicCartUpdated        = kafka.Topic("cart", "updated")
	TopicCartCleared        = kafka.Topic("cart", "cleared")
	TopicOrderCreated       = kafka.Topic("order", "created")
	TopicOrderStatusChanged = kafka.Topic("order", "status_changed")
)

// Event types carried in the envelope.
const (
	TypeCartUpdated        = "cart.updated"
	TypeCartCleared        = "cart.cleared"
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

const (
	AggregateCart  = "cart"
	AggregateOrder = "order"
	Source         = "martapp"
)

// Reasons a cart is cleared.
const (
	ClearedByCheckout = "checkout"
	ClearedByLogout   = "logout"
	ClearedByUser     = "user"
)

type CartLineData struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type CartUpdatedData struct {
	UserID        string         `json:"user_id"`
	Items         []CartLineData `json:"items"`
	TotalQuantity int            `json:"total_quantity"`
	TotalPrice    int64          `json:"total_price"`
}

type CartClearedData struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type OrderCreatedData struct {
	OrderID     string             `json:"order_id"`
	BuyerID     string             `json:"buyer_id"`
	Items       []domain.OrderItem `json:"items"`
	TotalAmount int64              `json:"total_amount"`
}

type OrderStatusChangedData struct {
	OrderID   string             `json:"order_id"`
	BuyerID   string             `json:"buyer_id"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	ChangedBy string             `json:"changed_by"`
}

// Producer publishes marketplace events. Publishing is best-effort: the
// Publish* methods log failures and never return them, so a broker outage
// cannot fail a request whose state change already committed.
type Producer struct {
	pub    kafka.Publisher
	logger *slog.Logger
}

func NewProducer(pub kafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

func (p *Producer) PublishCartUpdated(ctx context.Context, cart domain.Cart) {
	lines := cart.Lines()
	items := make([]CartLineData, len(lines))
	for i, li := range lines {
		items[i] = CartLineData{
			ProductID: li.ProductID,
			SellerID:  li.SellerID,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	p.publish(ctx, TopicCartUpdated, TypeCartUpdated, AggregateCart, cart.UserID, CartUpdatedData{
		UserID:        cart.UserID,
		Items:         items,
		TotalQuantity: cart.TotalQuantity,
		TotalPrice:    cart.TotalPrice,
	})
}

func (p *Producer) PublishCartCleared(ctx context.Context, userID, reason string) {
	p.publish(ctx, TopicCartCleared, TypeCartCleared, AggregateCart, userID, CartClearedData{
		UserID: userID,
		Reason: reason,
	})
}

func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) {
	p.publish(ctx, TopicOrderCreated, TypeOrderCreated, AggregateOrder, o.ID, OrderCreatedData{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
	})
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus, changedBy string) {
	p.publish(ctx, TopicOrderStatusChanged, TypeOrderStatusChanged, AggregateOrder, o.ID, OrderStatusChangedData{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		From:      from,
		To:        o.Status,
		ChangedBy: changedBy,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateType, aggregateID string, data any) {
	if err := p.send(ctx, topic, eventType, aggregateType, aggregateID, data); err != nil {
		logger.WithContext(ctx, p.logger).ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) send(ctx context.Context, topic, eventType, aggregateType, aggregateID string, data any) error {
	evt, err := kafka.NewEvent(ctx, eventType, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return p.pub.Publish(ctx, topic, evt)
}
