package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

type fakeValidator struct {
	claims *model.AuthClaims
	err    error
	gotTyp string
}

func (v *fakeValidator) ValidateToken(_ string, expectedType string) (*model.AuthClaims, error) {
	v.gotTyp = expectedType
	return v.claims, v.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorBody {
	t.Helper()
	var body model.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	var seen *model.AuthClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAuthMiddleware(&fakeValidator{}).RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, apierror.CodeUnauthorized, decodeBody(t, rec).Code)
	})

	t.Run("expired token keeps its code", func(t *testing.T) {
		v := &fakeValidator{err: apierror.New(apierror.CodeTokenExpired, "Token has expired", "", http.StatusUnauthorized)}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()

		NewAuthMiddleware(v).RequireAuth(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, apierror.CodeTokenExpired, decodeBody(t, rec).Code)
	})

	t.Run("unclassified validator error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()

		NewAuthMiddleware(&fakeValidator{err: errors.New("boom")}).RequireAuth(next).ServeHTTP(rec, req)
		assert.Equal(t, "Invalid or expired token", decodeBody(t, rec).Error)
	})

	t.Run("refresh route asks for refresh tokens", func(t *testing.T) {
		v := &fakeValidator{claims: &model.AuthClaims{UserID: 7, Type: "refresh"}}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "bearer xyz")
		rec := httptest.NewRecorder()

		NewAuthMiddleware(v).RequireRefresh(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "refresh", v.gotTyp)
		require.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.UserID)
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierror.CodeInternal, decodeBody(t, rec).Code)
}

func TestLoggingSetsRequestID(t *testing.T) {
	t.Parallel()

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusBadRequest, model.ErrorBody{Error: "nope", Code: apierror.CodeBadRequest})
	}))

	t.Run("echoes the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(requestIDHeader, "req-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))
		assert.Equal(t, "nope", decodeBody(t, rec).Error)
	})

	t.Run("generates one otherwise", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	})
}

func TestLoggingExposesRequestIDToHandlers(t *testing.T) {
	t.Parallel()

	var seen string
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		recordCaller(r.Context(), 42)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "req-2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-2", seen)
	assert.Empty(t, RequestID(context.Background()))
}
