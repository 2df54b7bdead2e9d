package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/orderengine/api/responses"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderSessionID = "X-Session-Id"

	maxSessionIDLen = 128
)

// Identity seeds the request context with the caller identity asserted by the
// upstream gateway. Requests without any identity pass through anonymous; a
// malformed user id is rejected.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := strings.TrimSpace(r.Header.Get(HeaderUserID)); raw != "" {
				userID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || userID <= 0 {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity"))
					return
				}
				ctx = WithUserID(ctx, userID)
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID)
				}
			}

			if role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))); role != "" {
				ctx = WithRole(ctx, role)
				if logg != nil {
					ctx = logg.WithField(ctx, "actor_role", role)
				}
			}

			if sessionID := strings.TrimSpace(r.Header.Get(HeaderSessionID)); sessionID != "" {
				if len(sessionID) > maxSessionIDLen {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id too long"))
					return
				}
				ctx = WithSessionID(ctx, sessionID)
				if logg != nil {
					ctx = logg.WithSessionID(ctx, sessionID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous and guest callers.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
