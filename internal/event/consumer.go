package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sofi161/martapp/internal/repository"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/logger"
)

// SalesRecorder applies sold quantities to the catalog.
type SalesRecorder interface {
	RecordSales(ctx context.Context, lines []repository.SaleLine) error
}

// OrderCreatedHandler keeps per-product sales and stock in step with
// placed orders. Quantities of the same product across lines are summed.
func OrderCreatedHandler(recorder SalesRecorder, log *slog.Logger) kafka.Handler {
	return func(ctx context.Context, evt *kafka.Event) error {
		if evt.EventType != TypeOrderCreated {
			return nil
		}

		var data OrderCreatedData
		if err := evt.UnmarshalData(&data); err != nil {
			return fmt.Errorf("decode order.created: %w", err)
		}

		lines := make([]repository.SaleLine, 0, len(data.Items))
		index := make(map[string]int, len(data.Items))
		for _, it := range data.Items {
			if i, ok := index[it.ProductID]; ok {
				lines[i].Quantity += it.Quantity
				continue
			}
			index[it.ProductID] = len(lines)
			lines = append(lines, repository.SaleLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		if err := recorder.RecordSales(ctx, lines); err != nil {
			return fmt.Errorf("record sales for order %s: %w", data.OrderID, err)
		}

		logger.WithContext(ctx, log).InfoContext(ctx, "sales recorded",
			slog.String("order_id", data.OrderID),
			slog.Int("products", len(lines)),
		)
		return nil
	}
}
