package http

import (
	"net/http"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/pkg/middleware"
)

// actorFrom returns the caller identified by middleware.Identify. Routes
// using it sit behind RequireIdentity or RequireRole, so the zero Actor is
// only seen if a route is mounted without them.
func actorFrom(r *http.Request) domain.Actor {
	ident, _ := middleware.IdentityFromContext(r.Context())
	return domain.Actor{UserID: ident.UserID, Role: ident.Role}
}
