package demoapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CounterUnavailable is the body served when the backing store is down
const CounterUnavailable = "The counter is unavailable. Try again shortly."

// HitCounter tracks page views
type HitCounter interface {
	// Hit increments and returns the total view count
	Hit(ctx context.Context) (int64, error)

	// Healthy reports whether the backing store is reachable
	Healthy(ctx context.Context) error

	// Close releases the connection
	Close() error
}

const hitsKey = "hits"

// RedisCounter counts hits in Redis so the count survives app restarts
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to Redis at addr (host:port)
func NewRedisCounter(addr string) *RedisCounter {
	return &RedisCounter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Hit increments the counter
func (r *RedisCounter) Hit(ctx context.Context) (int64, error) {
	return r.client.Incr(ctx, hitsKey).Result()
}

// Healthy pings Redis
func (r *RedisCounter) Healthy(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (r *RedisCounter) Close() error {
	return r.client.Close()
}

// NewCounter builds the visit counter app. When the counter backend is down
// the page degrades to 503 instead of crashing, so a container that starts
// before Redis just serves errors until it catches up.
func NewCounter(hits HitCounter, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(logger))

	e.GET("/", func(c echo.Context) error {
		count, err := hits.Hit(c.Request().Context())
		if err != nil {
			logger.Error().Err(err).Msg("hit counter unavailable")
			return c.String(http.StatusServiceUnavailable, CounterUnavailable)
		}
		return c.String(http.StatusOK, fmt.Sprintf("Hello! This page has been viewed %d times.", count))
	})

	e.GET("/healthz", func(c echo.Context) error {
		if err := hits.Healthy(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
