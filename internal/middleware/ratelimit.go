package middleware

import (
	"net/http"
	"strconv"
	"time"

	"capgen_backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// OTPRateLimiter - фиксированное окно на выдачу одноразовых кодов.
// Ключ - IP клиента: эндпоинты выдачи кодов не требуют авторизации.
// При недоступном Redis лимитер пропускает запрос (fail-open).
func OTPRateLimiter(rdb *redis.Client, requestsPerWindow int, window time.Duration) gin.HandlerFunc {
	if rdb == nil || requestsPerWindow <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		key := "ratelimit:otp:" + ip

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter redis error, allowing request", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			// Первый запрос открывает окно
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("rate limiter expire failed", "key", key, "error", err)
			}
		}

		remaining := int64(requestsPerWindow) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerWindow))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(requestsPerWindow) {
			ttl, _ := rdb.TTL(ctx, key).Result()
			secs := int(ttl / time.Second)
			if secs < 0 {
				secs = int(window / time.Second)
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too_many_requests",
				"message":     "Too many OTP requests. Try again later.",
				"retry_after": secs,
			})
			return
		}

		c.Next()
	}
}
