package mailer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limits defines send-rate ceilings for the downstream provider.
type Limits struct {
	PerSecond int
	PerMinute int
	Daily     int
}

// DefaultLimits matches a modest production SES allocation.
var DefaultLimits = Limits{PerSecond: 50, PerMinute: 1000, Daily: 100000}

// RateLimiter provides atomic send rate limiting using a Redis Lua script.
// A GET-check-INCR sequence would race between concurrent batch sends; the
// script checks every window and increments only when all of them pass.
type RateLimiter struct {
	redis  *redis.Client
	limits Limits
	script *redis.Script
}

// Lua script for the atomic multi-window check-and-increment.
const limitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secCurrent + increment > secondLimit then
    return {0, 1}
end
if minCurrent + increment > minuteLimit then
    return {0, 2}
end
if dayCurrent + increment > dailyLimit then
    return {0, 3}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, 2)
end

local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, 120)
end

local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, 90000)
end

return {1, 0}
`

// NewRateLimiter creates a rate limiter with a pre-compiled Lua script.
func NewRateLimiter(client *redis.Client, limits Limits) *RateLimiter {
	if limits.PerSecond == 0 {
		limits = DefaultLimits
	}
	return &RateLimiter{
		redis:  client,
		limits: limits,
		script: redis.NewScript(limitLuaScript),
	}
}

// CheckAndIncrement atomically reserves capacity for count sends. When
// denied it returns how long the caller should wait before retrying; an
// exhausted daily window is reported as an error.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, count int) (allowed bool, waitTime time.Duration, err error) {
	now := time.Now()

	secondKey := fmt.Sprintf("ratelimit:send:sec:%d", now.Unix())
	minuteKey := fmt.Sprintf("ratelimit:send:min:%d", now.Unix()/60)
	dailyKey := fmt.Sprintf("ratelimit:send:day:%s", now.Format("2006-01-02"))

	result, err := r.script.Run(ctx, r.redis,
		[]string{secondKey, minuteKey, dailyKey},
		count,
		r.limits.PerSecond,
		r.limits.PerMinute,
		r.limits.Daily,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if result[0].(int64) == 1 {
		return true, 0, nil
	}

	switch result[1].(int64) {
	case 1:
		waitTime = time.Second
	case 2:
		waitTime = time.Duration(60-now.Second()) * time.Second
	case 3:
		return false, 0, fmt.Errorf("daily send limit exceeded")
	}
	return false, waitTime, nil
}

// Wait blocks until capacity for count sends is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, count int) error {
	for {
		allowed, waitTime, err := r.CheckAndIncrement(ctx, count)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		log.Printf("[RateLimiter] Throttled, waiting %s", waitTime)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// Close closes the Redis connection.
func (r *RateLimiter) Close() error {
	return r.redis.Close()
}
