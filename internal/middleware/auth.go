// Package middleware contains HTTP middleware for the Oneiro API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed into a stack in cmd/server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/handler"
)

// UserID retrieves the authenticated user ID from the request context.
// Returns an empty string if the request was not authenticated.
func UserID(ctx context.Context) string {
	return auth.UserID(ctx)
}

func setUserID(ctx context.Context, id string) context.Context {
	return auth.WithUserID(ctx, id)
}

// Authenticator validates bearer tokens on incoming requests.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator creates an Authenticator that verifies HMAC-signed
// JWTs against the given secret.
func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		logger: logger,
	}
}

// Require returns middleware that rejects requests without a valid
// bearer token. The token's subject claim becomes the request's user ID,
// retrievable via UserID(ctx).
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			a.logger.Debug("request rejected",
				"path", r.URL.Path,
				"error", err,
			)
			handler.Error(w, r, a.logger, domain.Unauthorized("middleware.Require", "invalid or missing credentials"))
			return
		}

		next.ServeHTTP(w, r.WithContext(setUserID(r.Context(), userID)))
	})
}

// authenticate extracts and verifies the bearer token, returning the
// subject claim.
func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", domain.Unauthorized("middleware.authenticate", "missing bearer token")
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.Unauthorized("middleware.authenticate", "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", domain.Unauthorized("middleware.authenticate", "invalid token")
	}
	if claims.Subject == "" {
		return "", domain.Unauthorized("middleware.authenticate", "token has no subject")
	}

	return claims.Subject, nil
}

// Stack composes middlewares so the first listed runs outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
