// Package auth provides the bearer-token middleware guarding user-scoped
// endpoints. Tokens are HS256 JWTs whose subject is the user's UUID.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/httputil"
	"mizan/pkg/requestcontext"
)

// Validator parses and verifies bearer tokens.
type Validator struct {
	signingKey []byte
}

// NewValidator constructs a Validator over a shared HS256 signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// UserIDFromToken verifies the token signature and extracts the subject as a
// UserID.
func (v *Validator) UserIDFromToken(tokenString string) (id.UserID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token missing subject")
	}
	userID, err := id.ParseUserID(sub)
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not a user id")
	}
	return userID, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated UserID in the request context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			userID, err := validator.UserIDFromToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}
