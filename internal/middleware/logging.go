package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-fintrack/internal/model"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id Logging assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logging tags every request with an X-Request-ID (the client's, when it sent
// one) and logs one line per request. Error responses also log the API error
// code and message.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		// Filled in by Require further down the chain.
		caller := &callerSlot{}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, callerSlotKey{}, caller)
		r = r.WithContext(ctx)

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			attrs = append(attrs, "route", rctx.RoutePattern())
		}
		if caller.userID != 0 {
			attrs = append(attrs, "user_id", caller.userID)
		}

		if rec.status >= 400 {
			var body model.ErrorBody
			if err := json.Unmarshal(rec.errBody.Bytes(), &body); err == nil && body.Error != "" {
				attrs = append(attrs, "error_code", body.Code, "error_message", body.Error)
			}
		}

		switch {
		case rec.status >= 500:
			slog.Error("request", attrs...)
		case rec.status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

type callerSlotKey struct{}

type callerSlot struct {
	userID int64
}

func recordCaller(ctx context.Context, userID int64) {
	if slot, ok := ctx.Value(callerSlotKey{}).(*callerSlot); ok {
		slot.userID = userID
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	errBody     bytes.Buffer
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status >= 400 && rw.errBody.Len() < 4<<10 {
		rw.errBody.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}
