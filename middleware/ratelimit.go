package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"

	"jine-api-go/logcolors"
	"jine-api-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	cacheOnlyKey     contextKey = "cacheOnly"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// Rate limit tiers reported in X-RateLimit-Type
const (
	TierNormal   = "normal"
	TierCached   = "cached"
	TierBypass   = "bypass"
	TierExceeded = "exceeded"
)

// LimiterPair holds both normal and cached tier limiters for an IP
type LimiterPair struct {
	Normal *rate.Limiter
	Cached *rate.Limiter
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP
type IPRateLimiter struct {
	ips         map[string]*LimiterPair
	mu          sync.Mutex
	normalRate  rate.Limit
	normalBurst int
	cachedRate  rate.Limit
	cachedBurst int
}

// GetNormalLimit returns the normal tier burst limit
func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

// GetCachedLimit returns the cached tier burst limit
func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		normalRate:  normalRate,
		normalBurst: normalBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
	}
}

func (i *IPRateLimiter) AddIP(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addLocked(ip)
}

func (i *IPRateLimiter) addLocked(ip string) *LimiterPair {
	pair := &LimiterPair{
		Normal: rate.NewLimiter(i.normalRate, i.normalBurst),
		Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
	}
	i.ips[ip] = pair
	return pair
}

func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, exists := i.ips[ip]; exists {
		return limiter
	}
	return i.addLocked(ip)
}

// CacheOnly reports whether the request was admitted on the cached tier and
// must be answered from cache
func CacheOnly(ctx context.Context) bool {
	v, _ := ctx.Value(cacheOnlyKey).(bool)
	return v
}

// RateLimitType returns the tier the request was admitted on
func RateLimitType(ctx context.Context) string {
	v, _ := ctx.Value(rateLimitTypeKey).(string)
	return v
}

// clientIP strips the port from RemoteAddr so one client maps to one limiter
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware admits requests on the normal tier first, then on the
// cached tier (marking the request cache-only), and rejects with 429 once
// both are exhausted. A valid X-API-Key bypasses the limiter.
func RateLimitMiddleware(limiter *IPRateLimiter, st *stats.Stats, apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" && apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				w.Header().Set("X-RateLimit-Bypass", "true")
				ctx := context.WithValue(r.Context(), rateLimitTypeKey, TierBypass)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ip := clientIP(r)
			limiters := limiter.GetLimiter(ip)

			if limiters.Normal.Allow() {
				st.RecordRateLimit(TierNormal)
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetNormalLimit()))
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetNormalTokens()))
				w.Header().Set("X-RateLimit-Type", TierNormal)
				ctx := context.WithValue(r.Context(), rateLimitTypeKey, TierNormal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if limiters.Cached.Allow() {
				st.RecordRateLimit(TierCached)
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetCachedTokens()))
				w.Header().Set("X-RateLimit-Type", TierCached)
				log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, ip)
				ctx := context.WithValue(r.Context(), cacheOnlyKey, true)
				ctx = context.WithValue(ctx, rateLimitTypeKey, TierCached)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			st.RecordRateLimit(TierExceeded)
			log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, ip)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Type", TierExceeded)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
