package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

type tokenValidator interface {
	ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth accepts access tokens only.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.Require("access")(next)
}

// RequireRefresh guards the refresh endpoint, which is called with the
// refresh token as bearer.
func (m *AuthMiddleware) RequireRefresh(next http.Handler) http.Handler {
	return m.Require("refresh")(next)
}

func (m *AuthMiddleware) Require(tokenType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, apierror.New(apierror.CodeUnauthorized, "Missing or invalid authorization header", "", http.StatusUnauthorized))
				return
			}

			claims, err := m.validator.ValidateToken(token, tokenType)
			if err != nil {
				var apiErr *apierror.APIError
				if !errors.As(err, &apiErr) {
					apiErr = apierror.New(apierror.CodeUnauthorized, "Invalid or expired token", "", http.StatusUnauthorized)
				}
				writeUnauthorized(w, apiErr)
				return
			}

			recordCaller(r.Context(), claims.UserID)
			ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, apiErr *apierror.APIError) {
	status := apiErr.HTTPStatus
	if status == 0 {
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.ErrorBody{
		Error:   apiErr.Message,
		Code:    apiErr.Code,
		Details: apiErr.Details,
	})
}
