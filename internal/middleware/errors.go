package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/authgate/internal/logging"
)

type errorSlotKey struct{}

type errorSlot struct {
	mu  sync.Mutex
	err error
}

// ReportError records an error that a handler could not turn into a
// client-facing response. ErrorLogger logs it once the request completes.
// It reports whether a slot was present in ctx.
func ReportError(ctx context.Context, err error) bool {
	slot, ok := ctx.Value(errorSlotKey{}).(*errorSlot)
	if !ok || err == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.err == nil {
		slot.err = err
	}
	return true
}

// ErrorLogger gives each request an error slot and logs its content with
// the request's method and URL. The response itself is left untouched.
func ErrorLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot := &errorSlot{}
			ctx := context.WithValue(r.Context(), errorSlotKey{}, slot)

			next.ServeHTTP(w, r.WithContext(ctx))

			slot.mu.Lock()
			err := slot.err
			slot.mu.Unlock()
			if err == nil {
				return
			}

			logging.Error(r.Context(), logger, "request failed", err,
				"time", time.Now().UTC().Format(time.RFC3339Nano),
				"method", r.Method,
				"url", requestURL(r),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
