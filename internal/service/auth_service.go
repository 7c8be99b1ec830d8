// Package service binds the fintrack REST endpoints to typed Go calls. Every
// input is validated before a request is built.
package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-fintrack/internal/apiclient"
	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
	"go-fintrack/pkg/apierror"
)

// Requester is the subset of *apiclient.Client the services use.
type Requester interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
	DoJSON(ctx context.Context, req apiclient.Request, in any, out any) error
}

type AuthService struct {
	api      Requester
	validate *validation.Validator
}

func NewAuthService(api Requester, validate *validation.Validator) *AuthService {
	if validate == nil {
		validate = validation.New()
	}
	return &AuthService{api: api, validate: validate}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	var out model.RegisterResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/register"), req, &out)
	return out, err
}

func (s *AuthService) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) (model.AuthResponse, error) {
	req.OTP = strings.TrimSpace(req.OTP)

	var out model.AuthResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	if err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/verify-email"), req, &out); err != nil {
		return out, err
	}
	return out, requireSession(out, "verify-email")
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)

	var out model.AuthResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	if err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/login"), req, &out); err != nil {
		return out, err
	}
	return out, requireSession(out, "login")
}

func (s *AuthService) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (model.AuthResponse, error) {
	req.IDToken = strings.TrimSpace(req.IDToken)

	var out model.AuthResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	if err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/google"), req, &out); err != nil {
		return out, err
	}
	return out, requireSession(out, "google")
}

func (s *AuthService) ResendOTP(ctx context.Context, req model.ResendOTPRequest) (model.MessageResponse, error) {
	var out model.MessageResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/resend-otp"), req, &out)
	return out, err
}

func (s *AuthService) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) (model.MessageResponse, error) {
	req.Email = normalizeEmail(req.Email)

	var out model.MessageResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/forgot-password"), req, &out)
	return out, err
}

func (s *AuthService) VerifyResetToken(ctx context.Context, req model.VerifyResetTokenRequest) (model.VerifyResetTokenResponse, error) {
	req.Token = strings.TrimSpace(req.Token)

	var out model.VerifyResetTokenResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/verify-reset-token"), req, &out)
	return out, err
}

func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (model.MessageResponse, error) {
	req.Token = strings.TrimSpace(req.Token)

	var out model.MessageResponse
	if err := s.validate.Struct(req); err != nil {
		return out, err
	}

	err := s.api.DoJSON(ctx, anonymous(http.MethodPost, "/auth/reset-password"), req, &out)
	return out, err
}

// Refresh exchanges the stored refresh token for a new access token. It does
// not store the result.
func (s *AuthService) Refresh(ctx context.Context) (model.RefreshResponse, error) {
	var out model.RefreshResponse
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/auth/refresh", Refresh: true}, &out)
	return out, err
}

func (s *AuthService) Profile(ctx context.Context) (model.UserProfile, error) {
	var out model.ProfileResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/auth/profile"}, &out); err != nil {
		return model.UserProfile{}, err
	}
	if out.User == nil {
		return model.UserProfile{}, missingField("profile", "user")
	}
	return *out.User, nil
}

// Logout tells the server to forget the session identified by accessToken.
// The token is passed explicitly because the caller clears local storage
// before the call completes.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	req := anonymous(http.MethodPost, "/auth/logout")
	req.Headers = map[string]string{"Authorization": "Bearer " + accessToken}
	return s.api.Do(ctx, req, nil)
}

func anonymous(method string, path string) apiclient.Request {
	return apiclient.Request{Method: method, Path: path, Anonymous: true}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// requireSession rejects a 2xx auth answer that cannot start a session.
func requireSession(resp model.AuthResponse, op string) error {
	if resp.AccessToken == "" {
		return missingField(op, "access_token")
	}
	if resp.User == nil {
		return missingField(op, "user")
	}
	return nil
}

func missingField(op string, field string) error {
	return &apierror.NetworkError{Op: "decode " + op, Err: errors.New("response has no " + field)}
}
