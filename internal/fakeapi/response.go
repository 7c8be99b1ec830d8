package fakeapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
	"go-fintrack/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.MessageResponse{Message: message})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorBody{
		Code:  apierror.CodeInternal,
		Error: "An unexpected error occurred",
	}

	var apiErr *apierror.APIError
	var vErr *validation.Error
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Error = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &vErr) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = vErr.Fields[0].Message
		body.Details = vErr.Fields[0].Field
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Error = "User not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Error = "Email already registered"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Error = "Invalid email or password"
	} else if errors.Is(err, model.ErrInvalidOTP) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Invalid verification code"
	} else if errors.Is(err, model.ErrOTPExpired) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Verification code has expired"
	} else if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrTokenExpired) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Invalid or expired reset token"
	} else if errors.Is(err, model.ErrTransactionNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Error = "Transaction not found"
	} else if errors.Is(err, model.ErrInvalidCategory) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Invalid category for this transaction type"
	} else if errors.Is(err, model.ErrCategoryExists) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Category already exists for this type"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Error = "Invalid input"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	writeJSON(w, status, body)
}

func badRequest(message string) *apierror.APIError {
	return apierror.New(apierror.CodeBadRequest, message, "", http.StatusBadRequest)
}

// decodeJSON reads a JSON body; a missing or malformed body is a 400.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequest("No JSON data provided")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("Invalid JSON body")
	}
	return nil
}
