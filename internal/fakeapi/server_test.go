package fakeapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-fintrack/internal/config"
	"go-fintrack/internal/fakeapi"
	"go-fintrack/internal/federated"
	"go-fintrack/internal/model"
	"go-fintrack/internal/router"
)

const testPassword = "Secret123!"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubGoogle struct {
	identity federated.Identity
	err      error
}

func (s stubGoogle) Verify(_ context.Context, _ string, _ string) (federated.Identity, error) {
	return s.identity, s.err
}

type harness struct {
	t     *testing.T
	url   string
	api   *fakeapi.API
	clock *clock
}

func newHarness(t *testing.T, google fakeapi.IDTokenVerifier) *harness {
	t.Helper()

	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	api, err := fakeapi.New(fakeapi.Options{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		Google:     google,
		Now:        clk.Now,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
		FakeExposeOutbox: true,
	}

	server := httptest.NewServer(router.New(cfg, api))
	t.Cleanup(server.Close)

	return &harness{t: t, url: server.URL + "/api", api: api, clock: clk}
}

func (h *harness) do(method string, path string, token string, body any, out any) int {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.url+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signUp registers and verifies a user, returning the verified session.
func (h *harness) signUp(name string, email string) model.AuthResponse {
	h.t.Helper()

	var reg model.RegisterResponse
	status := h.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Name: name, Email: email, Password: testPassword, ConfirmPassword: testPassword,
	}, &reg)
	require.Equal(h.t, http.StatusCreated, status)
	require.NotZero(h.t, reg.UserID)

	msg, ok := h.api.Outbox.Latest(email, fakeapi.MailVerification)
	require.True(h.t, ok)

	var session model.AuthResponse
	status = h.do(http.MethodPost, "/auth/verify-email", "", model.VerifyEmailRequest{UserID: reg.UserID, OTP: msg.Secret}, &session)
	require.Equal(h.t, http.StatusOK, status)
	return session
}

func TestRegistrationAndVerification(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	session := h.signUp("Asha", "Asha@Example.com")
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.NotNil(t, session.User)
	assert.Equal(t, "asha@example.com", session.User.Email)
	assert.True(t, session.User.IsVerified)

	var profile model.ProfileResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/auth/profile", session.AccessToken, nil, &profile))
	require.NotNil(t, profile.User)
	assert.Equal(t, session.User.ID, profile.User.ID)

	var body model.ErrorBody
	status := h.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Name: "Asha", Email: "asha@example.com", Password: testPassword, ConfirmPassword: testPassword,
	}, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Email already registered", body.Error)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	var body model.ErrorBody
	status := h.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Name: "Asha", Email: "asha@example.com", Password: "weakpass", ConfirmPassword: "weakpass",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body.Code)
	assert.Equal(t, "password", body.Details)
}

func TestVerifyEmailRejectsWrongAndExpiredCodes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	var reg model.RegisterResponse
	h.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Name: "Asha", Email: "asha@example.com", Password: testPassword, ConfirmPassword: testPassword,
	}, &reg)
	msg, _ := h.api.Outbox.Latest("asha@example.com", fakeapi.MailVerification)

	wrong := "000000"
	if msg.Secret == wrong {
		wrong = "111111"
	}

	var body model.ErrorBody
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/auth/verify-email", "", model.VerifyEmailRequest{UserID: reg.UserID, OTP: wrong}, &body))
	assert.Equal(t, "Invalid verification code", body.Error)

	h.clock.Advance(11 * time.Minute)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/auth/verify-email", "", model.VerifyEmailRequest{UserID: reg.UserID, OTP: msg.Secret}, &body))
	assert.Equal(t, "Verification code has expired", body.Error)

	var sent model.MessageResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/resend-otp", "", model.ResendOTPRequest{UserID: reg.UserID}, &sent))
	fresh, _ := h.api.Outbox.Latest("asha@example.com", fakeapi.MailVerification)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/verify-email", "", model.VerifyEmailRequest{UserID: reg.UserID, OTP: fresh.Secret}, nil))

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/auth/resend-otp", "", model.ResendOTPRequest{UserID: reg.UserID}, &body))
	assert.Equal(t, "Email already verified", body.Error)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	t.Run("unverified accounts carry the user id", func(t *testing.T) {
		var reg model.RegisterResponse
		h.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
			Name: "Ravi", Email: "ravi@example.com", Password: testPassword, ConfirmPassword: testPassword,
		}, &reg)

		var body model.ErrorBody
		status := h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "ravi@example.com", Password: testPassword}, &body)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "EMAIL_NOT_VERIFIED", body.Code)
		assert.Equal(t, fmt.Sprint(reg.UserID), body.Details)
	})

	t.Run("wrong password", func(t *testing.T) {
		h.signUp("Asha", "asha@example.com")

		var body model.ErrorBody
		status := h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "asha@example.com", Password: "Wrong123!"}, &body)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid email or password", body.Error)
	})

	t.Run("success", func(t *testing.T) {
		var session model.AuthResponse
		status := h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "ASHA@example.com", Password: testPassword}, &session)
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, session.AccessToken)
		assert.NotEmpty(t, session.RefreshToken)
	})
}

func TestTokenExpiryAndRefresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	session := h.signUp("Asha", "asha@example.com")

	h.clock.Advance(16 * time.Minute)

	var body model.ErrorBody
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/auth/profile", session.AccessToken, nil, &body))
	assert.Equal(t, "TOKEN_EXPIRED", body.Code)

	t.Run("refresh requires the refresh token", func(t *testing.T) {
		var body model.ErrorBody
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/refresh", "", nil, &body))
		assert.Equal(t, "UNAUTHORIZED", body.Code)
	})

	var refreshed model.RefreshResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/refresh", session.RefreshToken, nil, &refreshed))
	require.NotEmpty(t, refreshed.AccessToken)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/auth/profile", refreshed.AccessToken, nil, nil))

	t.Run("an access token cannot refresh", func(t *testing.T) {
		var body model.ErrorBody
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/refresh", refreshed.AccessToken, nil, &body))
		assert.Equal(t, "Invalid token type", body.Error)
	})
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	session := h.signUp("Asha", "asha@example.com")

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/logout", session.AccessToken, nil, nil))

	var body model.ErrorBody
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/auth/profile", session.AccessToken, nil, &body))
	assert.Equal(t, "Token has been revoked", body.Error)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.signUp("Asha", "asha@example.com")

	var msg model.MessageResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/forgot-password", "", model.ForgotPasswordRequest{Email: "nobody@example.com"}, &msg))
	_, sent := h.api.Outbox.Latest("nobody@example.com", fakeapi.MailPasswordReset)
	assert.False(t, sent)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/forgot-password", "", model.ForgotPasswordRequest{Email: "asha@example.com"}, &msg))
	mail, sent := h.api.Outbox.Latest("asha@example.com", fakeapi.MailPasswordReset)
	require.True(t, sent)

	var check model.VerifyResetTokenResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/verify-reset-token", "", model.VerifyResetTokenRequest{Token: mail.Secret}, &check))
	assert.True(t, check.Valid)
	assert.Equal(t, "asha@example.com", check.Email)

	const newPassword = "Changed456?"
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/reset-password", "", model.ResetPasswordRequest{
		Token: mail.Secret, NewPassword: newPassword, ConfirmPassword: newPassword,
	}, nil))

	var body model.ErrorBody
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/auth/verify-reset-token", "", model.VerifyResetTokenRequest{Token: mail.Secret}, &body))
	assert.Equal(t, "Invalid or expired reset token", body.Error)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "asha@example.com", Password: testPassword}, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "asha@example.com", Password: newPassword}, nil))
}

func TestGoogleLogin(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, nil)
		var body model.ErrorBody
		assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodPost, "/auth/google", "", model.GoogleLoginRequest{IDToken: "x"}, &body))
		assert.Equal(t, "NOT_CONFIGURED", body.Code)
	})

	t.Run("creates a verified user on first sign-in", func(t *testing.T) {
		h := newHarness(t, stubGoogle{identity: federated.Identity{Subject: "g-1", Email: "asha@example.com", EmailVerified: true, Name: "Asha"}})

		var session model.AuthResponse
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/google", "", model.GoogleLoginRequest{IDToken: "id-token"}, &session))
		require.NotNil(t, session.User)
		assert.Equal(t, "Asha", session.User.Name)
		assert.True(t, session.User.IsVerified)

		var again model.AuthResponse
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/google", "", model.GoogleLoginRequest{IDToken: "id-token"}, &again))
		assert.Equal(t, session.User.ID, again.User.ID)

		// A federated account has no password to log in with.
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "asha@example.com", Password: testPassword}, nil))
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		h := newHarness(t, stubGoogle{err: errors.New("bad signature")})
		var body model.ErrorBody
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/google", "", model.GoogleLoginRequest{IDToken: "id-token"}, &body))
		assert.Equal(t, "Invalid Google token", body.Error)
	})
}

func TestExpenses(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	token := h.signUp("Asha", "asha@example.com").AccessToken

	var cats model.CategoryList
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses/categories", token, nil, &cats))
	byName := map[string]model.Category{}
	for _, c := range cats.Categories {
		byName[c.Name] = c
	}
	food, salary := byName["Food"], byName["Salary"]
	require.True(t, food.IsDefault)
	require.Equal(t, model.TypeIncome, salary.Type)

	add := func(body map[string]any) model.Transaction {
		t.Helper()
		var resp model.TransactionResponse
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/expenses", token, body, &resp))
		return resp.Expense
	}

	lunch := add(map[string]any{"amount": 12.5, "category_id": food.ID, "payment_mode": "upi", "date": "2024-03-05T12:00:00"})
	assert.Equal(t, "Food", lunch.Category)
	assert.Equal(t, model.TypeExpense, lunch.Type)
	add(map[string]any{"amount": 3000, "type": "income", "category_id": salary.ID, "date": "2024-03-01T09:00:00Z"})
	taxi := add(map[string]any{"amount": 20, "payment_mode": "bitcoin", "date": "2024-04-02T08:00:00"})
	assert.Equal(t, model.PaymentCash, taxi.PaymentMode)

	t.Run("rejects bad input", func(t *testing.T) {
		var body model.ErrorBody
		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/expenses", token, map[string]any{"amount": -1}, &body))
		assert.Equal(t, "Amount must be positive", body.Error)

		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/expenses", token, map[string]any{"amount": 5, "type": "income", "category_id": food.ID}, &body))
		assert.Equal(t, "Invalid category for this transaction type", body.Error)

		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/expenses", token, map[string]any{"amount": 5, "date": "yesterday"}, &body))
	})

	t.Run("lists newest first with filters", func(t *testing.T) {
		var page model.TransactionPage
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses", token, nil, &page))
		require.Equal(t, 3, page.Total)
		assert.Equal(t, taxi.ID, page.Expenses[0].ID)
		assert.Equal(t, 1, page.Pages)

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses?type=expense&payment_mode=upi&payment_mode=cash", token, nil, &page))
		assert.Equal(t, 2, page.Total)

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses?start_date=2024-03-01T00:00:00Z&end_date=2024-03-31T23:59:59Z", token, nil, &page))
		assert.Equal(t, 2, page.Total)

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, fmt.Sprintf("/expenses?category_id=%d", salary.ID), token, nil, &page))
		assert.Equal(t, 1, page.Total)

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses?page=2&per_page=2", token, nil, &page))
		assert.Equal(t, 2, page.Pages)
		assert.Len(t, page.Expenses, 1)
	})

	t.Run("update and delete", func(t *testing.T) {
		var resp model.TransactionResponse
		require.Equal(t, http.StatusOK, h.do(http.MethodPut, fmt.Sprintf("/expenses/%d", lunch.ID), token, map[string]any{"description": "team lunch", "amount": 40}, &resp))
		assert.Equal(t, "team lunch", resp.Expense.Description)
		assert.Equal(t, 40.0, resp.Expense.Amount)
		assert.Equal(t, "Food", resp.Expense.Category)

		require.Equal(t, http.StatusOK, h.do(http.MethodDelete, fmt.Sprintf("/expenses/%d", lunch.ID), token, nil, nil))

		var body model.ErrorBody
		assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, fmt.Sprintf("/expenses/%d", lunch.ID), token, nil, &body))
		assert.Equal(t, "Transaction not found", body.Error)
	})

	t.Run("transactions are private", func(t *testing.T) {
		other := h.signUp("Ravi", "ravi@example.com").AccessToken
		var page model.TransactionPage
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses", other, nil, &page))
		assert.Zero(t, page.Total)
		assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, fmt.Sprintf("/expenses/%d", taxi.ID), other, nil, nil))
	})

	t.Run("categories", func(t *testing.T) {
		var created model.CategoryResponse
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/expenses/categories", token, model.CategoryInput{Name: "Pets"}, &created))
		assert.Equal(t, model.TypeExpense, created.Category.Type)
		assert.False(t, created.Category.IsDefault)

		var body model.ErrorBody
		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/expenses/categories", token, model.CategoryInput{Name: "Food", Type: "expense"}, &body))
		assert.Equal(t, "Category already exists for this type", body.Error)

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/expenses/categories", token, nil, &cats))
		names := make([]string, 0, len(cats.Categories))
		for _, c := range cats.Categories {
			names = append(names, c.Name)
		}
		assert.Contains(t, names, "Pets")
		assert.IsNonDecreasing(t, names)
	})

	t.Run("requires a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/expenses", "", nil, nil))
	})
}

func TestDevOutbox(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.signUp("Asha", "asha@example.com")

	var out struct {
		Messages []fakeapi.Message `json:"messages"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/dev/outbox?email=asha@example.com", "", nil, &out))
	require.Len(t, out.Messages, 1)
	assert.Equal(t, fakeapi.MailVerification, out.Messages[0].Kind)
}
