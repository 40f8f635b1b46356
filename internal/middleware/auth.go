package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/banking-service/internal/auth"
	"github.com/josh-kwaku/banking-service/internal/handler"
)

// RequireCredential rejects requests without an Authorization header and
// passes the raw value on through the context. Nothing is verified here; the
// identity service is the authority.
func RequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := strings.TrimSpace(r.Header.Get("Authorization"))
		if credential == "" {
			handler.RespondAppError(w, handler.ErrMissingToken, nil)
			return
		}

		ctx := auth.ContextWithCredential(r.Context(), credential)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth validates a locally issued bearer token and stores its user id on the
// context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrUnauthorized, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				handler.RespondAppError(w, handler.ErrUnauthorized, nil)
				return
			}

			ctx := auth.ContextWithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
