package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const otpRateLimitPrefix = "rl:otp:"

// OTPRateLimit caps OTP sends per phone number (or client IP when the body
// carries none) within a rolling minute.
func OTPRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := digitsOf(req.Phone)
		if subject == "" {
			subject = c.IP()
		}

		key := otpRateLimitPrefix + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			// fail open
			logger.Warn("otp rate limit unavailable", slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many verification codes requested, try again later")
		}
		return c.Next()
	}
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
