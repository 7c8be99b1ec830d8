package fakeapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-fintrack/internal/federated"
	"go-fintrack/internal/middleware"
	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
	"go-fintrack/pkg/apierror"
)

const (
	otpTTL   = 10 * time.Minute
	resetTTL = time.Hour
)

// IDTokenVerifier checks a Google ID token; *federated.Provider satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string, nonce string) (federated.Identity, error)
}

type AuthOptions struct {
	// Google is nil when federated sign-in is not configured.
	Google     IDTokenVerifier
	BcryptCost int
	Now        func() time.Time
}

type AuthHandler struct {
	store      *Store
	tokens     *Issuer
	outbox     *Outbox
	google     IDTokenVerifier
	validate   *validation.Validator
	bcryptCost int
	now        func() time.Time
}

func NewAuthHandler(store *Store, tokens *Issuer, outbox *Outbox, opts AuthOptions) *AuthHandler {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &AuthHandler{
		store:      store,
		tokens:     tokens,
		outbox:     outbox,
		google:     opts.Google,
		validate:   validation.New(),
		bcryptCost: opts.BcryptCost,
		now:        opts.Now,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.store.CreateUser(req.Name, req.Email, string(hash), false, h.now())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sendOTP(user); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, model.RegisterResponse{
		Message: "Registration successful! Please check your email for verification code.",
		UserID:  user.ID,
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.OTP = strings.TrimSpace(req.OTP)

	if req.UserID == 0 || req.OTP == "" {
		writeError(w, badRequest("User ID and OTP are required"))
		return
	}

	if err := h.store.ConsumeOTP(req.UserID, req.OTP, h.now()); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.store.MarkVerified(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeSession(w, user, "Email verified successfully!")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, badRequest("Email and password are required"))
		return
	}

	user, err := h.store.UserByEmail(req.Email)
	if err != nil {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	if !user.Verified {
		writeError(w, apierror.New(
			apierror.CodeEmailNotVerified,
			"Please verify your email before logging in",
			strconv.FormatInt(user.ID, 10),
			http.StatusUnauthorized,
		))
		return
	}

	h.writeSession(w, user, "Login successful")
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apierror.New("NOT_CONFIGURED", "Google sign-in is not configured", "", http.StatusServiceUnavailable))
		return
	}

	var req model.GoogleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		writeError(w, badRequest("ID token is required"))
		return
	}

	identity, err := h.google.Verify(r.Context(), req.IDToken, "")
	if err != nil {
		slog.Warn("google token rejected", "error", err)
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Invalid Google token", "", http.StatusUnauthorized))
		return
	}
	if identity.Email == "" || !identity.EmailVerified {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Google account email is not verified", "", http.StatusUnauthorized))
		return
	}

	user, err := h.store.UserByEmail(identity.Email)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		name := identity.Name
		if name == "" {
			name = identity.Email
		}
		user, err = h.store.CreateUser(name, identity.Email, "", true, h.now())
	case err == nil && !user.Verified:
		user, err = h.store.MarkVerified(user.ID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeSession(w, user, "Login successful")
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req model.ResendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == 0 {
		writeError(w, badRequest("User ID is required"))
		return
	}

	user, err := h.store.UserByID(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user.Verified {
		writeError(w, badRequest("Email already verified"))
		return
	}

	if err := h.sendOTP(user); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Verification code sent successfully")
}

// ForgotPassword answers the same way whether or not the address is known.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, badRequest("Email is required"))
		return
	}

	if user, err := h.store.UserByEmail(req.Email); err == nil {
		token := uuid.NewString()
		h.store.PutResetToken(token, user.ID, h.now().Add(resetTTL))
		h.outbox.Send(Message{To: user.Email, Kind: MailPasswordReset, Secret: token, SentAt: h.now()})
	}

	writeMessage(w, http.StatusOK, "If an account exists for this email, a reset link has been sent")
}

func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyResetTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, err := h.store.ResetTokenOwner(strings.TrimSpace(req.Token), h.now())
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.store.UserByID(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.VerifyResetTokenResponse{
		Message: "Token is valid",
		Valid:   true,
		Email:   user.Email,
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Token = strings.TrimSpace(req.Token)

	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	userID, err := h.store.ResetTokenOwner(req.Token, h.now())
	if err != nil {
		writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.bcryptCost)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.SetPassword(userID, string(hash)); err != nil {
		writeError(w, err)
		return
	}
	h.store.DeleteResetToken(req.Token)

	writeMessage(w, http.StatusOK, "Password has been reset successfully")
}

// Refresh is mounted behind RequireRefresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Authentication required", "", http.StatusUnauthorized))
		return
	}

	if _, err := h.store.UserByID(claims.UserID); err != nil {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "User not found", "", http.StatusUnauthorized))
		return
	}

	access, err := h.tokens.IssueAccess(claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RefreshResponse{AccessToken: access})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Authentication required", "", http.StatusUnauthorized))
		return
	}

	user, err := h.store.UserByID(claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	profile := user.profile()
	writeJSON(w, http.StatusOK, model.ProfileResponse{User: &profile})
}

// Logout revokes the presented access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		h.tokens.Revoke(claims.TokenID)
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, user userRecord, message string) {
	creds, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	profile := user.profile()
	writeJSON(w, http.StatusOK, model.AuthResponse{
		Message:      message,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         &profile,
	})
}

func (h *AuthHandler) sendOTP(user userRecord) error {
	code, err := newOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	h.store.PutOTP(user.ID, code, h.now().Add(otpTTL))
	h.outbox.Send(Message{To: user.Email, Kind: MailVerification, Secret: code, SentAt: h.now()})
	return nil
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
