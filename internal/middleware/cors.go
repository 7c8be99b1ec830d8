package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// CORS lets browser dashboards call the API. No origins means any origin.
// Credentials are bearer tokens, never cookies, so AllowCredentials stays off.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:         600,
		Logger:         corsLogger{},
	})

	return handler.Handler
}

// corsLogger routes rs/cors diagnostics to slog at debug level.
type corsLogger struct{}

func (corsLogger) Printf(format string, args ...any) {
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("cors", "detail", fmt.Sprintf(format, args...))
	}
}
