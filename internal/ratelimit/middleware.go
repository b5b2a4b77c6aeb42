package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/common"
)

// CodeRateLimited is the error code surfaced on throttled responses.
const CodeRateLimited = "RATE_LIMITED"

// Guard enforces a per-caller request budget before delegating downstream.
// Callers are keyed by their forwarded actor identity, falling back to the
// remote address for anonymous traffic. Limiter errors fail open.
type Guard struct {
	Limiter Limiter
	Window  time.Duration
	Max     int
	Log     zerolog.Logger
}

// Middleware implements the http.Handler middleware interface.
func (g Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Max <= 0 || g.Window <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := callerKey(r)
		allowed, remaining, resetAt, err := g.Limiter.Allow(r.Context(), key, g.Window, g.Max)
		if err != nil {
			g.Log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(g.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if actor, ok := common.ActorFrom(r.Context()); ok {
		return "actor:" + actor.ID
	}
	return "addr:" + r.RemoteAddr
}
