package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
)

func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						logger.StringField("method", r.Method),
						logger.StringField("path", r.URL.Path),
						logger.AnyField("error", rec),
						logger.StringField("stack", string(debug.Stack())),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
