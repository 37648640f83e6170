package middleware

import (
	"net/http"
	"runtime/debug"

	perr "modloader/internal/platform/errors"
	"modloader/internal/platform/logger"
)

// Recover turns a panic into a 500 written by onErr and logs the stack
// http.ErrAbortHandler is re-raised
func Recover(onErr func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				onErr(w, r, perr.New(perr.ErrorCodePanic, "internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
