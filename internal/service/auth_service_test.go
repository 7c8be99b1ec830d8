package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fintrack/internal/apiclient"
	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
	"go-fintrack/pkg/apierror"
)

type staticTokens struct{ access, refresh string }

func (s staticTokens) GetAccessToken(context.Context) (string, error)  { return s.access, nil }
func (s staticTokens) GetRefreshToken(context.Context) (string, error) { return s.refresh, nil }

func newAPI(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return apiclient.New(server.URL, staticTokens{access: "A1", refresh: "R1"})
}

func TestAuthServiceLogin(t *testing.T) {
	t.Parallel()

	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.NotContains(t, body, "Remember")

		_, _ = w.Write([]byte(`{"message":"Login successful","access_token":"A1","refresh_token":"R1","user":{"id":1,"name":"A"}}`))
	})

	resp, err := NewAuthService(api, nil).Login(context.Background(), model.LoginRequest{
		Email:    "  A@B.com ",
		Password: "secret",
		Remember: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.Credentials{AccessToken: "A1", RefreshToken: "R1"}, resp.Credentials())
	require.Equal(t, "A", resp.User.Name)
}

func TestAuthServiceValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	svc := NewAuthService(api, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, model.LoginRequest{Email: "not-an-email", Password: "x"})
	require.True(t, validation.IsValidationError(err))

	_, err = svc.Register(ctx, model.RegisterRequest{Name: "A", Email: "a@b.com", Password: "weak", ConfirmPassword: "weak"})
	require.True(t, validation.IsValidationError(err))

	_, err = svc.VerifyEmail(ctx, model.VerifyEmailRequest{UserID: 1, OTP: "12"})
	require.True(t, validation.IsValidationError(err))

	_, err = svc.ResetPassword(ctx, model.ResetPasswordRequest{Token: "t", NewPassword: "Secret123!", ConfirmPassword: "Secret123?"})
	require.True(t, validation.IsValidationError(err))

	_, err = svc.GoogleLogin(ctx, model.GoogleLoginRequest{IDToken: "  "})
	require.True(t, validation.IsValidationError(err))

	require.Zero(t, calls.Load())
}

func TestAuthServiceRefreshUsesRefreshToken(t *testing.T) {
	t.Parallel()

	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		assert.Equal(t, "Bearer R1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token":"A2"}`))
	})

	resp, err := NewAuthService(api, nil).Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A2", resp.AccessToken)
}

func TestAuthServiceProfile(t *testing.T) {
	t.Parallel()

	t.Run("returns the user", func(t *testing.T) {
		api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"user":{"id":3,"name":"A","email":"a@b.com","is_verified":true}}`))
		})

		user, err := NewAuthService(api, nil).Profile(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(3), user.ID)
		require.True(t, user.IsVerified)
	})

	t.Run("missing user is a network error", func(t *testing.T) {
		api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})

		_, err := NewAuthService(api, nil).Profile(context.Background())
		require.True(t, apierror.IsNetwork(err))
	})

	t.Run("expired token surfaces as AuthExpiredError", func(t *testing.T) {
		api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Token has expired","code":"TOKEN_EXPIRED"}`))
		})

		_, err := NewAuthService(api, nil).Profile(context.Background())
		var expired *apierror.AuthExpiredError
		require.ErrorAs(t, err, &expired)
		require.Equal(t, http.StatusUnauthorized, expired.HTTPStatus)
	})
}

func TestAuthServiceUnverifiedLogin(t *testing.T) {
	t.Parallel()

	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Please verify your email before logging in","code":"EMAIL_NOT_VERIFIED","details":"12"}`))
	})

	_, err := NewAuthService(api, nil).Login(context.Background(), model.LoginRequest{Email: "a@b.com", Password: "x"})
	require.Error(t, err)

	id, ok := apierror.UnverifiedUserID(err)
	require.True(t, ok)
	require.Equal(t, int64(12), id)
}
