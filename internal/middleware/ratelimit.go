package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"juris-rag-go/pkg/log"
)

// WindowCounter counts hits on key within a fixed window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisWindowCounter struct {
	rdb *redis.Client
}

// NewRedisWindowCounter counts with INCR and a TTL set on the first hit.
func NewRedisWindowCounter(rdb *redis.Client) WindowCounter {
	return &redisWindowCounter{rdb: rdb}
}

func (r *redisWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.rdb.Expire(ctx, key, window)
	}
	return count, nil
}

// RateLimit allows limit requests per client IP and route within window.
// Counter failures let the request through.
func RateLimit(counter WindowCounter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || counter == nil {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + ":" + c.FullPath()
		count, err := counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			log.Warnf("[RateLimit] counter unavailable, allowing request: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
