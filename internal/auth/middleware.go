package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFrom extracts the authenticated caller placed by Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Exposed for
// handler tests that bypass the middleware.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Middleware verifies the Authorization bearer token and injects the
// caller's identity into the request context. Requests without a valid
// token get a 401 envelope.
func Middleware(issuer *TokenIssuer, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				unauthorized(w, "Authentication required. Please provide a valid token.")
				return
			}
			token := strings.TrimSpace(header[len("bearer "):])
			if token == "" {
				unauthorized(w, "Authentication token not found.")
				return
			}
			id, err := issuer.Verify(token)
			if err != nil {
				logger.Debugw("token rejected", "err", err)
				unauthorized(w, "Invalid or expired token.")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  http.StatusUnauthorized,
		"message": msg,
	})
}
