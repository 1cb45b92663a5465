package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window per-IP counter backed by Redis, so the limit
// holds across replicas. A nil client disables limiting entirely.
type Limiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

func New(addr string, limit int, window time.Duration) *Limiter {
	if addr == "" {
		return &Limiter{Limit: limit, Window: window}
	}
	return &Limiter{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Limit:  limit,
		Window: window,
	}
}

func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Client == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			key := fmt.Sprintf("ratelimit:%s:%d", c.RealIP(), time.Now().Unix()/int64(l.Window.Seconds()))

			count, err := l.Client.Incr(ctx, key).Result()
			if err != nil {
				// Redis being down must not take auth down with it.
				c.Logger().Errorf("rate limit error: %v", err)
				return next(c)
			}
			if count == 1 {
				l.Client.Expire(ctx, key, l.Window)
			}
			if count > int64(l.Limit) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			return next(c)
		}
	}
}
