package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered",
				"error", recovered,
				"request_id", RequestID(r.Context()),
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeErrorBody(w, http.StatusInternalServerError, model.ErrorBody{
				Error: "Unexpected server error",
				Code:  apierror.CodeInternal,
			})
		}()

		next.ServeHTTP(w, r)
	})
}
