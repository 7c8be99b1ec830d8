package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const (
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"

	// DefaultMessage is used when the server supplies no message.
	DefaultMessage = "An error occurred"
)

// ErrAuthExpired matches any AuthExpiredError via errors.Is.
var ErrAuthExpired = errors.New("access token expired")

// APIError is a non-2xx answer from the API, or the error the fake server
// renders for one.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Code == "" {
		return e.Message
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) IsUnauthorized() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.Code == CodeUnauthorized
}

func (e *APIError) IsNotFound() bool {
	return e.HTTPStatus == http.StatusNotFound || e.Code == CodeNotFound
}

func (e *APIError) IsRateLimited() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.Code == CodeRateLimited
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// AuthExpiredError is the APIError the server returns when the presented
// access token is past its expiry. Only session initialisation reacts to it;
// everywhere else it behaves as a plain APIError.
type AuthExpiredError struct {
	*APIError
}

func (e *AuthExpiredError) Unwrap() error { return e.APIError }

func (e *AuthExpiredError) Is(target error) bool { return target == ErrAuthExpired }

// NetworkError means the request never produced a usable HTTP answer.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AsAPIError returns the APIError in err's chain, including the one carried by
// an AuthExpiredError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// UnverifiedUserID extracts the user id the login endpoint attaches when the
// account still needs email verification.
func UnverifiedUserID(err error) (int64, bool) {
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Code != CodeEmailNotVerified || apiErr.Details == "" {
		return 0, false
	}

	id, convErr := strconv.ParseInt(apiErr.Details, 10, 64)
	if convErr != nil {
		return 0, false
	}

	return id, true
}
