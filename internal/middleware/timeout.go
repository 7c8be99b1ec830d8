package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-fintrack/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds handler time. A handler that overruns gets a 503 with the
// usual error body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.ErrorBody{Error: "Request timed out", Code: "REQUEST_TIMEOUT"})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
