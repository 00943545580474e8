package testutil

import (
	"context"
	"net/http"
	"time"

	id "mizan/pkg/domain"
	"mizan/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the userID is not a valid UUID, it will not be added to the context.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithRequestTime pins the request time, as the request-time middleware would.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithAuth adds a user ID and a pinned request time to the request context.
// This is the typical state for an authenticated request.
// An invalid user ID is silently ignored.
func WithAuth(req *http.Request, userID string, now time.Time) *http.Request {
	req = WithUserID(req, userID)
	return WithRequestTime(req, now)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
