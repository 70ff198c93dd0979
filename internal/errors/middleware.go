package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RecoveryMiddleware turns a handler panic into a 500 problem. Once a
// response has started, a half-written chart or CSV for example, the panic is
// only logged. http.ErrAbortHandler is passed on to the server.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww, ok := w.(middleware.WrapResponseWriter)
			if !ok {
				ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}
				if ww.Status() != 0 {
					handler.logPanic(r, recovered, true)
					return
				}
				handler.HandlePanic(ww, r, recovered)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
