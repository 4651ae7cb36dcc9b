package http

import (
	"log/slog"
	"net/http"

	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/pkg/httputil"
)

type SellerHandler struct {
	service *service.SellerService
	logger  *slog.Logger
}

func NewSellerHandler(svc *service.SellerService, logger *slog.Logger) *SellerHandler {
	return &SellerHandler{service: svc, logger: logger}
}

// Dashboard handles GET /api/v1/seller/dashboard
func (h *SellerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}

// Analytics handles GET /api/v1/seller/analytics
func (h *SellerHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, a)
}
