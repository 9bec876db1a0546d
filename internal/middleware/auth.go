// Package middleware guards HTTP routes and gRPC methods with session tokens.
package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/response"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
)

const (
	msgMalformedHeader = "Authorization header missing or malformed"
	msgInvalidToken    = "Invalid or expired token"
	msgForbidden       = "You do not have permission to access this resource"
)

// TokenVerifier checks a session token and returns its claims
type TokenVerifier interface {
	Verify(token string) (*jwtpkg.Claims, error)
}

type claimsContextKey struct{}

// WithClaims returns a copy of ctx carrying claims
func WithClaims(ctx context.Context, claims *jwtpkg.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims attached by Authenticate
func ClaimsFromContext(ctx context.Context) (*jwtpkg.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwtpkg.Claims)
	return claims, ok && claims != nil
}

// Authenticate rejects requests without a valid bearer token and attaches the
// token's claims to the request context.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authorize(verifier, r.Header.Get("Authorization"))
			if err != nil {
				log.Debug().Str("path", r.URL.Path).Str("code", string(err.Code)).Msg("Request rejected")
				response.Error(w, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRoles rejects authenticated requests whose role is not in roles. It must
// run after Authenticate.
func RequireRoles(log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, log, errors.Unauthorized(msgInvalidToken))
				return
			}
			if !slices.Contains(roles, claims.Role) {
				log.Warn().
					Str("user_id", claims.UserID()).
					Str("role", claims.Role).
					Str("path", r.URL.Path).
					Msg("Role not permitted")
				response.Error(w, log, errors.Forbidden(msgForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authorize validates an Authorization header value
func authorize(verifier TokenVerifier, header string) (*jwtpkg.Claims, *errors.AppError) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingOrMalformedHeader, msgMalformedHeader)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, msgInvalidToken)
	}
	return claims, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
