package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Refills lazily from redis server time. Returns
// {allowed, tokens_left, server_ms, wait_ms} where wait_ms is the time until
// the next whole token when the call was denied.
var bucketScript = redis.NewScript(`
local rate  = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl   = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "t", "at")
local left = tonumber(state[1]) or burst
local at = tonumber(state[2]) or now
if now > at then
  left = math.min(burst, left + (now - at) * rate / 1000)
end

local ok = 0
local wait = 0
if left >= 1 then
  ok = 1
  left = left - 1
else
  wait = math.ceil((1 - left) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "t", tostring(left), "at", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {ok, tostring(left), now, wait}
`)

var ErrBucketUnavailable = errors.New("verification bucket not configured")

// TokenBucket is a redis-backed bucket shared by every API replica.
type TokenBucket struct {
	rdb redis.UniversalClient
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(rdb redis.UniversalClient) *TokenBucket {
	if rdb == nil {
		return nil
	}
	return &TokenBucket{rdb: rdb}
}

// Allow takes one token from key. Invalid input and redis failures report
// Allowed=false alongside the error; callers decide whether to fail open.
func (b *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	denied := &RateLimitResult{Limit: burst}
	switch {
	case b == nil || b.rdb == nil:
		return denied, ErrBucketUnavailable
	case key == "":
		return denied, errors.New("verification bucket key is empty")
	case rate <= 0 || burst <= 0:
		return denied, fmt.Errorf("verification bucket needs positive rate and burst, got %v/%d", rate, burst)
	}

	ttl := defaultBucketTTL(rate, burst)
	reply, err := bucketScript.Run(ctx, b.rdb, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return denied, err
	}
	if len(reply) != 4 {
		return denied, fmt.Errorf("verification bucket: unexpected reply length %d", len(reply))
	}

	left := castToFloat(reply[1])
	wait := time.Duration(castToInt(reply[3])) * time.Millisecond
	res := &RateLimitResult{
		Allowed:   castToInt(reply[0]) == 1,
		Limit:     burst,
		Remaining: int(math.Floor(left)),
		ResetTime: time.UnixMilli(castToInt(reply[2])).Add(wait),
	}
	if !res.Allowed {
		res.RetryAfter = wait
	}
	return res, nil
}

// defaultBucketTTL keeps idle buckets around for twice their full refill time.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}

func castToInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}

func castToFloat(v any) float64 {
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
