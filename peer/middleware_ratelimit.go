package peer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limit is the sustained rate in requests per second.
	Limit rate.Limit

	// Burst is the token bucket capacity.
	Burst int

	// KeyFunc groups requests into buckets. Nil means one global bucket.
	KeyFunc KeyFunc

	// Redis shares the buckets between peer instances. Nil keeps them in
	// memory.
	Redis redis.UniversalClient

	// RedisKeyPrefix defaults to "ocho:ratelimit:".
	RedisKeyPrefix string
}

// KeyFunc extracts a bucket key from a request.
type KeyFunc func(r *http.Request) string

// KeyFuncByIP keys requests by the first X-Forwarded-For entry or the
// remote address.
func KeyFuncByIP() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			return xff
		}
		return r.RemoteAddr
	}
}

const (
	defaultRateLimitPrefix = "ocho:ratelimit:"
	rateLimitKeyTTL        = 60 // seconds
)

// RateLimit returns token bucket rate limiting middleware. Limited requests
// get 429 {"error": "Too many requests."}.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = defaultRateLimitPrefix
	}

	var allow func(r *http.Request) bool
	if cfg.Redis != nil {
		allow = redisAllower(cfg)
	} else {
		allow = memoryAllower(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(r) {
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func memoryAllower(cfg RateLimitConfig) func(*http.Request) bool {
	if cfg.KeyFunc == nil {
		limiter := rate.NewLimiter(cfg.Limit, cfg.Burst)
		return func(*http.Request) bool { return limiter.Allow() }
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(r *http.Request) bool {
		key := cfg.KeyFunc(r)

		mu.Lock()
		limiter, ok := limiters[key]
		if !ok {
			limiter = rate.NewLimiter(cfg.Limit, cfg.Burst)
			limiters[key] = limiter
		}
		mu.Unlock()

		return limiter.Allow()
	}
}

// tokenBucketScript refills a bucket by the elapsed time, then takes one
// token if there is one. It returns 1 when the request is allowed.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if tokens == nil then
    tokens = burst
    last_update = now
end

local elapsed_ms = math.max(0, now - last_update)
tokens = math.min(burst, tokens + (elapsed_ms / 1000.0) * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, ttl)
return allowed
`)

// redisAllower fails open: a Redis error lets the request through.
func redisAllower(cfg RateLimitConfig) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := cfg.RedisKeyPrefix + "global"
		if cfg.KeyFunc != nil {
			key = cfg.RedisKeyPrefix + cfg.KeyFunc(r)
		}

		allowed, err := takeToken(r.Context(), cfg.Redis, key, float64(cfg.Limit), cfg.Burst)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
			return true
		}
		return allowed
	}
}

func takeToken(ctx context.Context, rdb redis.UniversalClient, key string, rps float64, burst int) (bool, error) {
	n, err := tokenBucketScript.Run(ctx, rdb, []string{key},
		rps, burst, time.Now().UnixMilli(), rateLimitKeyTTL).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
