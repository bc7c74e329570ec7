package handler

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/buythelook/payments-api/internal/appctx"
)

// Payment endpoints allow 30 requests per minute per user.
const (
	defaultRateLimit = rate.Limit(30.0 / 60.0)
	defaultRateBurst = 30

	limiterIdleTTL = 10 * time.Minute
)

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// userRateLimiter keeps a token bucket per authenticated user. Idle buckets
// are dropped lazily on lookup.
type userRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*userLimiter
	sweepAt  time.Time
}

func newUserRateLimiter(limit rate.Limit, burst int) *userRateLimiter {
	return &userRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
		sweepAt:  time.Now().Add(limiterIdleTTL),
	}
}

func (rl *userRateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.sweepAt) {
		for id, ul := range rl.limiters {
			if now.Sub(ul.lastAccess) > limiterIdleTTL {
				delete(rl.limiters, id)
			}
		}
		rl.sweepAt = now.Add(limiterIdleTTL)
	}

	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = now
	return ul.limiter.Allow()
}

// rateLimited wraps an authenticated handler with the per-user limit.
// Must run behind requireAuthAPI.
func (h *Handler) rateLimited(handlerFunc http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := MustGetUser(r.Context())
		if !h.limiter.allow(user.UserID) {
			appctx.GetLogger(r.Context()).Warn("rate limit exceeded", "user_id", user.UserID, "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		handlerFunc(w, r)
	}
}
