package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/httputil"
	"github.com/sofi161/martapp/pkg/logger"
)

// Headers set by the upstream gateway after it has authenticated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type identityKey struct{}

// Identity is the caller as asserted by the gateway. UserID is always a
// canonical lowercase UUID string.
type Identity struct {
	UserID string
	Role   string
}

// IdentityConfig lists the roles the gateway may assert and the role assumed
// when the role header is absent.
type IdentityConfig struct {
	Roles       []string
	DefaultRole string
}

// Identify parses the gateway identity headers. Requests without a user id
// pass through anonymously; a malformed id or an unknown role is rejected
// with 401.
func Identify(cfg IdentityConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("malformed user identity"), nil)
				return
			}

			role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
			if role == "" {
				role = cfg.DefaultRole
			}
			if _, ok := allowed[role]; !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("unknown role "+role), nil)
				return
			}

			ident := Identity{UserID: id.String(), Role: role}
			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("enduser.id", ident.UserID),
				attribute.String("enduser.role", ident.Role),
			)
			ctx := context.WithValue(r.Context(), identityKey{}, ident)
			ctx = logger.WithIdentity(ctx, ident.UserID, ident.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only identified callers holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
				return
			}
			if _, ok := roleSet[ident.Role]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(Identity)
	return ident, ok
}

// WithIdentity stores ident in ctx. Handler tests use it to skip the headers.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}
