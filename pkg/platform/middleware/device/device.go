// Package device derives a human-readable device descriptor from the
// User-Agent header. Audit events record it so unlock/finalize entries show
// which device acted.
package device

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"mizan/pkg/requestcontext"
)

// Middleware parses the User-Agent and stores a short descriptor like
// "Chrome 120 on Linux" in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if name := DisplayName(r.UserAgent()); name != "" {
			ctx = requestcontext.WithDeviceName(ctx, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DisplayName converts a raw User-Agent into a short descriptor. Returns ""
// for empty or unparseable agents.
func DisplayName(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	if browser == "" {
		return ""
	}
	osInfo := ua.OSInfo()
	if osInfo.Name == "" {
		return browser
	}
	if version != "" {
		return fmt.Sprintf("%s %s on %s", browser, version, osInfo.Name)
	}
	return fmt.Sprintf("%s on %s", browser, osInfo.Name)
}
