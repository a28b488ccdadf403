package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(rateLimiter *service.RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		ctx := c.Request.Context()

		allowed, err := rateLimiter.Allow(ctx, key, limit, window)
		if err != nil && !strings.Contains(err.Error(), "rate limit exceeded") {
			// Redis being down must not take the endpoint with it; let the
			// request through.
			c.Next()
			return
		}

		remaining, _ := rateLimiter.GetRemainingRequests(ctx, key, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if err != nil || !allowed {
			message := "Rate limit exceeded"
			if err != nil {
				message = err.Error()
				c.Header("X-RateLimit-Retry-After", extractRetryAfter(message))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: message,
			})
			return
		}

		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP
func IPBasedKey(c *gin.Context) string {
	ip := c.GetHeader("X-Forwarded-For")
	if ip != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(ip, ",")
		ip = strings.TrimSpace(ips[0])
	} else {
		ip = c.ClientIP()
	}

	return ip
}

// UserBasedKey keys the limit on the authenticated user so one user's sync
// triggers cannot exhaust another's budget behind a shared NAT. Falls back
// to the client IP before authentication.
func UserBasedKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return fmt.Sprintf("user:%s", userID)
	}
	return IPBasedKey(c)
}

// extractRetryAfter extracts retry-after time from error message
func extractRetryAfter(errMsg string) string {
	// Error text looks like "rate limit exceeded, try again in 45s".
	if _, after, found := strings.Cut(errMsg, "try again in"); found {
		return strings.TrimSpace(after)
	}
	return "60"
}
