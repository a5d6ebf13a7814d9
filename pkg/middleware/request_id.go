package middleware

import (
	"net/http"

	"payment-service/pkg/utils"
)

const RequestIDHeader = "X-Request-Id"

// RequestID reuses the caller's X-Request-Id (the gateway sends one with every webhook)
// or generates a new one, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateUUIDString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(utils.SetRequestID(r.Context(), requestID)))
	})
}
