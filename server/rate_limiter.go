package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const (
	rateLimiterMaxEntries = 10000
	rateLimiterIdleTTL    = 30 * time.Minute
)

// ipRateLimiter keeps one token bucket per client IP. Idle buckets expire and
// the least recently used ones are evicted once the cache is full.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](rateLimiterIdleTTL),
			ttlcache.WithCapacity[string, *rate.Limiter](rateLimiterMaxEntries),
		),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

// Allow reports whether a request from ip may proceed now
func (l *ipRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item := l.limiters.Get(ip); item != nil {
		return item.Value().Allow()
	}
	limiter := rate.NewLimiter(l.rps, l.burst)
	l.limiters.Set(ip, limiter, ttlcache.DefaultTTL)
	return limiter.Allow()
}

// clientIP is the peer address; forwarding headers are not trusted
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
