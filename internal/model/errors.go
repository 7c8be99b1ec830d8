package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotVerified    = errors.New("email not verified")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidOTP    = errors.New("invalid verification code")
	ErrOTPExpired    = errors.New("verification code expired")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")

	// Resource related errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCategoryExists      = errors.New("category already exists")
	ErrInvalidCategory     = errors.New("invalid category for this transaction type")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
