package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/logging"
)

// Recovery recovers from panics in downstream handlers, logs the stack, and
// responds with a generic 500 — never leaking panic detail to the caller.
func Recovery(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithContext(r.Context()).WithFields(map[string]any{
						"panic": fmt.Sprintf("%v", rec),
						"stack": string(debug.Stack()),
						"path":  r.URL.Path,
					}).Error("panic recovered")
					httpkit.WriteMessage(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
