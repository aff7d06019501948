package handler

import (
	"context"
	"net/http"
	"time"

	"tillshift/internal/infra"
	"tillshift/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// healthChecks back /health. A nil check reports "disabled".
type healthChecks struct {
	db          func(ctx context.Context) error
	redis       func(ctx context.Context) error
	deadLetters func(ctx context.Context) (map[string]int64, error)
	sales       func() string
}

// Health returns a JSON health check response.
// Checks DB and Redis connectivity, reports dead-lettered job counts and the
// sales breaker state; never exposes credentials or internals. An open
// breaker or a non-empty DLQ does not fail the check.
func Health(db *gorm.DB, rdb *redis.Client, salesCB *infra.CircuitBreaker) gin.HandlerFunc {
	checks := healthChecks{
		db: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks.redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		checks.deadLetters = func(ctx context.Context) (map[string]int64, error) { return worker.DLQDepths(ctx, rdb) }
	}
	if salesCB != nil {
		checks.sales = func() string { return salesCB.State().String() }
	}
	return checks.handler()
}

func (h healthChecks) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if h.db(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if h.redis != nil {
			redisStatus = "connected"
			if h.redis(ctx) != nil {
				redisStatus = "error"
			}
		}

		body := gin.H{"db": dbStatus, "redis": redisStatus, "sales": "disabled"}
		if h.sales != nil {
			body["sales"] = h.sales()
		}
		if h.deadLetters != nil && redisStatus == "connected" {
			if depths, err := h.deadLetters(ctx); err != nil {
				log.Warn().Err(err).Msg("health: dlq depth unavailable")
			} else {
				body["dead_letters"] = depths
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
