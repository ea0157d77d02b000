package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with a correlation id and, when the caller is
// a terminal, its terminal id, so one order's writes can be traced across
// registers.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
				if terminalID := r.Header.Get(terminalIDHeader); terminalID != "" {
					ctx = logg.WithTerminalID(ctx, terminalID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
