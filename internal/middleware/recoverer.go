package middleware

import (
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
)

// Recoverer turns a handler panic into a reported error and, when nothing
// has been written yet, a generic 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err := oops.In("http").With("stack", string(debug.Stack())).Errorf("panic: %v", rec)
			if e, ok := rec.(error); ok {
				err = oops.In("http").With("stack", string(debug.Stack())).Wrapf(e, "panic")
			}
			ReportError(r.Context(), err)

			if ww.Status() == 0 {
				writeJSONError(ww, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
