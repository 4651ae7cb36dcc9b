package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sofi161/martapp/internal/service"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/httputil"
	"github.com/sofi161/martapp/pkg/pagination"
	"github.com/sofi161/martapp/pkg/validator"
)

// ProductHandler serves the public catalog and the seller's product
// management routes.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// Search handles GET /api/v1/products?q=&category=&min_price=&max_price=&sort=
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minPrice, err := optionalInt64(q.Get("min_price"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("min_price must be an integer amount in cents"), h.logger)
		return
	}
	maxPrice, err := optionalInt64(q.Get("max_price"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("max_price must be an integer amount in cents"), h.logger)
		return
	}

	res, err := h.service.Search(r.Context(), service.SearchInput{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     q.Get("sort"),
		Page:     pagination.FromRequest(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res))
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListMine handles GET /api/v1/seller/products
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListSellerProducts(r.Context(), actorFrom(r).UserID, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res))
}

// GetMine handles GET /api/v1/seller/products/{id}
func (h *ProductHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.GetOwnedProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// Create handles POST /api/v1/seller/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProductInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, p)
}

// Update handles PUT /api/v1/seller/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	var req service.UpdateProductInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	p, err := h.service.Update(r.Context(), actorFrom(r), id, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/seller/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleStatus handles PATCH /api/v1/seller/products/{id}/toggle-status
func (h *ProductHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.ToggleStatus(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// Inventory handles GET /api/v1/seller/inventory
func (h *ProductHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Inventory(r.Context(), actorFrom(r).UserID, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res))
}

// UpdateStock handles PUT /api/v1/seller/inventory/{id}
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	var req service.UpdateStockInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	p, err := h.service.UpdateStock(r.Context(), actorFrom(r), id, *req.Stock)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

func optionalInt64(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
