package server

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oraculo-labs/oraculo-go/internal/logging"
)

// Default per-IP token-bucket parameters. Both ask and ingest are expensive
// requests: one reaches the LLM, the other can start a full OCR pass over a
// drive, so the sustained rate is kept low while the burst still absorbs a
// user re-asking a few questions in a row.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

// limiterTTL is how long an idle IP keeps its bucket before eviction.
const limiterTTL = 5 * time.Minute

// evictInterval is how often the eviction sweep runs.
const evictInterval = time.Minute

// ipLimiter pairs an IP's token bucket with the time it was last seen.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit on /api/ask and
// /api/ingest. Buckets for idle IPs are swept periodically so the map stays
// bounded no matter how many clients come and go.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter

	// rps and burst parameterize every bucket the limiter hands out.
	rps   rate.Limit
	burst int

	log *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its eviction sweep.
// The sweep goroutine exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// getLimiter returns the bucket for ip, creating it on first sight and
// refreshing its last-seen time.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// evictLoop runs the eviction sweep until stopCh is closed.
func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets that have been idle longer than limiterTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-limiterTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// middleware wraps next with the per-IP limit. Rejected requests get 429
// with a Retry-After header; the rejection is logged at WARN with the IP
// and path so abusive clients show up in the logs.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.getLimiter(ip).Allow() {
			log := logging.FromContext(r.Context())
			log.Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from the request's RemoteAddr. X-Forwarded-For
// is deliberately ignored: the server sits behind no proxy, so the header
// would let any client pick its own bucket.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
