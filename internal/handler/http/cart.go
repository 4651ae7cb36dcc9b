package http

import (
	"log/slog"
	"net/http"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/event"
	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/pkg/httputil"
	"github.com/sofi161/martapp/pkg/validator"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// cartResponse is the cart as rendered to clients: lines in insertion order
// rather than keyed by product.
type cartResponse struct {
	UserID        string            `json:"user_id"`
	Items         []domain.LineItem `json:"items"`
	TotalQuantity int               `json:"total_quantity"`
	TotalPrice    int64             `json:"total_price"`
}

func newCartResponse(c domain.Cart) cartResponse {
	lines := c.Lines()
	if lines == nil {
		lines = []domain.LineItem{}
	}
	return cartResponse{
		UserID:        c.UserID,
		Items:         lines,
		TotalQuantity: c.TotalQuantity,
		TotalPrice:    c.TotalPrice,
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	productID, ok := httputil.CanonicalID(w, r, req.ProductID)
	if !ok {
		return
	}
	req.ProductID = productID

	cart, err := h.service.AddItem(r.Context(), actorFrom(r).UserID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// UpdateItem handles PUT /api/v1/cart/items/{productId}. An empty body sets
// the line to one unit.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.PathID(w, r, "productId")
	if !ok {
		return
	}
	var req service.UpdateItemInput
	if err := validator.DecodeOptionalAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), actorFrom(r).UserID, productID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.PathID(w, r, "productId")
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), actorFrom(r).UserID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, event.ClearedByUser)
}

// Logout handles POST /api/v1/session/logout. The session cart does not
// outlive the session.
func (h *CartHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, event.ClearedByLogout)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request, reason string) {
	if err := h.service.ClearCart(r.Context(), actorFrom(r).UserID, reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
