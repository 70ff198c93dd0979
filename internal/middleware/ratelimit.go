package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	apperrors "ecomeda/internal/errors"
)

// maxTrackedClients bounds the per-client limiter table. The least recently
// seen client is forgotten first and starts again with a full bucket.
const maxTrackedClients = 4096

// RateLimiter gives every client IP its own token bucket
type RateLimiter struct {
	limit        rate.Limit
	burst        int
	mu           sync.Mutex
	clients      *lru.Cache[string, *rate.Limiter]
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewRateLimiter allows each client rps requests per second with bursts of
// up to burst
func NewRateLimiter(rps float64, burst int, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	// only fails for a non-positive size
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{
		limit:        rate.Limit(rps),
		burst:        burst,
		clients:      clients,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "rate_limiter")),
	}
}

func (rl *RateLimiter) limiterFor(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.clients.Get(client); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Add(client, l)
	return l
}

// Clients reports how many clients currently hold a bucket
func (rl *RateLimiter) Clients() int {
	return rl.clients.Len()
}

// Handler rejects requests over the client's budget with 429 and a
// Retry-After header in whole seconds
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		res := rl.limiterFor(client).Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			next.ServeHTTP(w, r)
			return
		}
		res.Cancel()

		retry := 1
		if res.OK() {
			retry = int(math.Ceil(delay.Seconds()))
		}
		rl.logger.WarnContext(r.Context(), "rate limit exceeded",
			slog.String("client", client),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("retry_after", retry))

		w.Header().Set("Retry-After", strconv.Itoa(retry))
		rl.errorHandler.HandleError(w, r, apperrors.ErrRateLimitExceeded)
	})
}
