package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/service"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/httputil"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marks a checkout answered from an earlier request.
	HeaderReplayed = "Idempotent-Replayed"
)

type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

type checkoutResponse struct {
	OrderID string        `json:"order_id"`
	Order   *domain.Order `json:"order"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > domain.MaxIdempotencyKeyLen {
		httputil.WriteError(w, r, apperrors.InvalidInput("Idempotency-Key is too long"), h.logger)
		return
	}

	res, err := h.service.Checkout(r.Context(), actorFrom(r).UserID, key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set(HeaderReplayed, "true")
		status = http.StatusOK
	}
	httputil.WriteData(w, status, checkoutResponse{OrderID: res.Order.ID, Order: res.Order})
}
