// Package requestid copies chi's request ID into the request context
// accessors services read, so correlation IDs survive outside net/http.
package requestid

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mizan/pkg/requestcontext"
)

// Middleware must run after chi's RequestID middleware.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
