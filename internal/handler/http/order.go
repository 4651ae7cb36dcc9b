package http

import (
	"log/slog"
	"net/http"

	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/pkg/httputil"
	"github.com/sofi161/martapp/pkg/pagination"
	"github.com/sofi161/martapp/pkg/validator"
)

// OrderHandler serves both the buyer's order history and the seller's
// fulfilment views.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// ListMine handles GET /api/v1/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListBuyerOrders(r.Context(), actorFrom(r).UserID, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res))
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// ListSeller handles GET /api/v1/seller/orders?status=
func (h *OrderHandler) ListSeller(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	res, err := h.service.ListSellerOrders(r.Context(), actorFrom(r).UserID, status, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res))
}

// GetSeller handles GET /api/v1/seller/orders/{id}
func (h *OrderHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.service.GetSellerOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// UpdateStatus handles PATCH /api/v1/seller/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	var req service.UpdateStatusInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}
