package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-enjoy/matching-app-be/consts"
	rediskey "github.com/sudo-enjoy/matching-app-be/consts/redisKey"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

// redisOpTimeout 单次限流检查的 Redis 超时，防止 Redis 响应慢拖慢接口
const redisOpTimeout = 50 * time.Millisecond

// ==================== Redis 令牌桶 Lua 脚本 ====================

// tokenBucketScript 原子地补充令牌并尝试消耗
//
//	KEYS[1]: 限流 key (如: rate:limit:ip:{ip})
//	ARGV[1]: 当前时间戳 (毫秒)
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 本次消耗的令牌数
//
// 返回 1 允许通过，0 令牌不足
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local tokens = tonumber(info[1])
local last_time = tonumber(info[2])

if tokens == nil then
    tokens = capacity
end
if last_time == nil then
    last_time = now
end

-- 补充令牌: 时间差ms * 速率 / 1000，保留小数避免低速率时永远补不上
local elapsed = math.max(0, now - last_time)
tokens = math.min(capacity, tokens + (elapsed * rate) / 1000)

local allowed = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_time', now)

-- 过期时间：桶填满所需时间 * 2，至少 60 秒
local ttl = math.max(60, math.ceil(capacity / rate) * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`)

// fixedWindowScript 固定窗口计数，首次计数时设置过期
//
//	KEYS[1]: 计数 key
//	ARGV[1]: 窗口毫秒数
//
// 返回当前窗口内的计数
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// ==================== Redis 限流器 ====================

// RedisRateLimiter 基于 Redis 的令牌桶限流器
// Redis 不可用时降级放行
type RedisRateLimiter struct {
	client *redis.Client
	rate   float64 // 每秒产生的令牌数
	burst  int     // 令牌桶容量
}

// NewRedisRateLimiter 创建令牌桶限流器，client 为 nil 时所有请求放行
func NewRedisRateLimiter(client *redis.Client, rate float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		rate:   rate,
		burst:  burst,
	}
}

// Allow 检查是否允许请求通过
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if r == nil || r.client == nil || r.rate <= 0 || r.burst <= 0 {
		return true
	}

	redisCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	allowed, err := tokenBucketScript.Run(redisCtx, r.client, []string{key},
		time.Now().UnixMilli(), r.burst, r.rate, 1).Int64()
	if err != nil {
		logFailOpen(ctx, "Redis 限流检查失败，降级放行", key, err)
		return true
	}
	return allowed == 1
}

// CheckBlacklist IP 是否在黑名单 Set 中，Redis 不可用时视为不在
func CheckBlacklist(ctx context.Context, client *redis.Client, blacklistKey, ip string) bool {
	if client == nil {
		return false
	}

	redisCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	exists, err := client.SIsMember(redisCtx, blacklistKey, ip).Result()
	if err != nil {
		logFailOpen(ctx, "Redis 黑名单检查失败，降级放行", blacklistKey, err)
		return false
	}
	return exists
}

// ==================== IP 限流中间件 ====================

// IPRateLimitMiddleware IP 黑名单 + 令牌桶限流
//
//	api.Use(IPRateLimitMiddleware(limiter, rediskey.IPBlacklistKey()))
func IPRateLimitMiddleware(limiter *RedisRateLimiter, blacklistKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := NewContextWithGin(c)

		// 1. 获取客户端 IP
		ip := ClientIPFromGinContext(c)
		if ip == "" {
			c.Next()
			return
		}

		// 2. 检查 IP 黑名单
		if limiter != nil && CheckBlacklist(ctx, limiter.client, blacklistKey, ip) {
			logger.Warn(ctx, "IP 在黑名单中，拒绝访问",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
			)
			result.Fail(c, consts.CodeIPForbidden)
			return
		}

		// 3. 令牌桶限流
		if !limiter.Allow(ctx, rediskey.IPRateLimitKey(ip)) {
			logger.Warn(ctx, "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			result.Fail(c, consts.CodeTooManyRequests)
			return
		}

		c.Next()
	}
}

// ==================== 验证码请求限流 ====================

// maxPeekBody 读取手机号时最多读取的请求体字节
const maxPeekBody = 16 * 1024

type phoneBody struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SMSRateLimitMiddleware 按 (IP, 手机号) 限制验证码请求次数
// 窗口内超过 maxPerWindow 次返回 429；请求体读取后原样放回，不影响后续绑定
func SMSRateLimitMiddleware(client *redis.Client, maxPerWindow int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || maxPerWindow <= 0 || window <= 0 {
			c.Next()
			return
		}
		ctx := NewContextWithGin(c)

		// 1. 读取手机号，读不到交给后续参数校验处理
		phone := peekPhoneNumber(c)
		if phone == "" {
			c.Next()
			return
		}
		ip := ClientIPFromGinContext(c)

		// 2. 固定窗口计数
		redisCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		key := rediskey.SMSRequestKey(ip, phone)
		n, err := fixedWindowScript.Run(redisCtx, client, []string{key}, window.Milliseconds()).Int64()
		if err != nil {
			logFailOpen(ctx, "验证码限流检查失败，降级放行", key, err)
			c.Next()
			return
		}

		// 3. 超出次数
		if n > int64(maxPerWindow) {
			logger.Warn(ctx, "验证码请求过于频繁",
				logger.String("ip", ip),
				logger.String("phone", util.MaskPhone(phone)),
				logger.Int64("count", n),
			)
			result.Fail(c, consts.CodeTooManySMS)
			return
		}

		c.Next()
	}
}

// peekPhoneNumber 从 JSON 请求体中取 phoneNumber，并把请求体放回
func peekPhoneNumber(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	orig := c.Request.Body
	raw, err := io.ReadAll(io.LimitReader(orig, maxPeekBody))
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), orig), orig}
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body phoneBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.PhoneNumber)
}

func logFailOpen(ctx context.Context, msg, key string, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		logger.Warn(ctx, msg, logger.String("key", key), logger.ErrorField("error", err))
		return
	}
	logger.Error(ctx, msg, logger.String("key", key), logger.ErrorField("error", err))
}
