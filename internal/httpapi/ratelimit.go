package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hedgeledger/core/internal/config"
)

// ipBucket is a fixed-window request counter: count resets to zero the
// instant windowStart ages past policy.Window, giving a hard cap of
// RequestsPerWindow within any one window. The windows do not slide: a
// span of policy.Window that straddles a reset can admit up to
// 2×RequestsPerWindow requests.
type ipBucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// IPRateLimiter applies ipBucket's fixed-window limit (90 requests per 60
// seconds by default) per source IP, each bucket rotated out of a
// TTL-bounded LRU so abandoned IPs don't leak memory (the pack's
// AKJUS-bsc-erigon and orbas1-Synnergy repos both reach for
// hashicorp/golang-lru for exactly this).
type IPRateLimiter struct {
	buckets *lru.LRU[string, *ipBucket]
	policy  config.RateLimitPolicy
}

func NewIPRateLimiter(policy config.RateLimitPolicy) *IPRateLimiter {
	return &IPRateLimiter{
		buckets: lru.NewLRU[string, *ipBucket](4096, nil, 2*policy.Window),
		policy:  policy,
	}
}

// Allow reports whether ip may proceed, plus the headers to attach
// regardless of outcome.
func (l *IPRateLimiter) Allow(ip string) (ok bool, limit, remaining int, reset time.Time) {
	bucket, found := l.buckets.Get(ip)
	if !found {
		bucket = &ipBucket{windowStart: time.Now()}
		l.buckets.Add(ip, bucket)
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	if now.Sub(bucket.windowStart) >= l.policy.Window {
		bucket.windowStart = now
		bucket.count = 0
	}

	ok = bucket.count < l.policy.RequestsPerWindow
	if ok {
		bucket.count++
	}

	remaining = l.policy.RequestsPerWindow - bucket.count
	if remaining < 0 {
		remaining = 0
	}
	return ok, l.policy.RequestsPerWindow, remaining, bucket.windowStart.Add(l.policy.Window)
}

// clientIP extracts the source IP, stripping a port if present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, limit, remaining, reset := limiter.Allow(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", map[string]interface{}{
					"retryAfter": time.Until(reset).Seconds(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
