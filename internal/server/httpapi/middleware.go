package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/server/auth"
)

type ctxKey string

const ownerIDKey ctxKey = "ownerID"

// extractToken pulls the access token from the Authorization header (Bearer
// scheme) or, failing that, from the token query parameter.
func extractToken(r *http.Request) string {
	header := r.Header.Get(common.AccessTokenHeaderName)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok && after != "" {
		return after
	}
	return r.URL.Query().Get(common.AccessTokenQueryParam)
}

// requireToken guards a route subtree with tokens of one owner kind. Tokens
// issued for a different kind are rejected even when validly signed.
func (s *Server) requireToken(p auth.Projection) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				s.writeError(w, r, common.ErrorUnauthorized)
				return
			}

			ownerID, err := p.OwnerIDFromToken(s.signer, tokenString)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ownerIDFromContext returns the owner id stored by requireToken.
func ownerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ownerIDKey).(int64)
	return id, ok
}
