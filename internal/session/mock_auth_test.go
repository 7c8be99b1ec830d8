package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-fintrack/internal/model"
)

// MockAuthAPI is a mock implementation of AuthAPI.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.RegisterResponse), args.Error(1)
}

func (m *MockAuthAPI) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) ResendOTP(ctx context.Context, req model.ResendOTPRequest) (model.MessageResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.MessageResponse), args.Error(1)
}

func (m *MockAuthAPI) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) (model.MessageResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.MessageResponse), args.Error(1)
}

func (m *MockAuthAPI) VerifyResetToken(ctx context.Context, req model.VerifyResetTokenRequest) (model.VerifyResetTokenResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.VerifyResetTokenResponse), args.Error(1)
}

func (m *MockAuthAPI) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (model.MessageResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.MessageResponse), args.Error(1)
}

func (m *MockAuthAPI) Refresh(ctx context.Context) (model.RefreshResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.RefreshResponse), args.Error(1)
}

func (m *MockAuthAPI) Profile(ctx context.Context) (model.UserProfile, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}
