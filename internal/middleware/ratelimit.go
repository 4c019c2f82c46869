package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
)

// Allower is the limiter surface the middleware needs.
type Allower interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles by account when authenticated, by remote address
// otherwise. Limiter errors are logged and the request passes.
func RateLimit(limiter Allower, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			ok, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", "error", err)
			}
			if !ok {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if ident, ok := IdentityFromCtx(r.Context()); ok {
		return "acct:" + ident.AccountID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
