package middleware

import (
	"context"
	"net/http"
	"strings"

	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

type principalResolver interface {
	ResolvePrincipal(ctx context.Context, accessToken string) (model.Principal, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

// AuthMiddleware resolves the bearer token of every protected request into a principal.
type AuthMiddleware struct {
	resolver principalResolver
}

func NewAuthMiddleware(resolver principalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, apierror.Unauthenticated(""))
			return
		}

		principal, err := m.resolver.ResolvePrincipal(r.Context(), token)
		if err != nil {
			writeAPIError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAPIError(w, apierror.Unauthenticated(""))
			return
		}

		if !principal.IsAdmin {
			writeAPIError(w, apierror.Forbidden("Administrator access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
