package worker

// stale_monitor.go
// Background goroutine that periodically looks for shifts still OPEN on an
// operating date older than the configured threshold and emails one alert
// per shift. The alert is deduplicated through a Redis SETNX key so restarts
// and multiple instances do not repeat it within the TTL.

import (
	"context"
	"fmt"
	"time"

	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	staleTickInterval = 10 * time.Minute
	staleAlertTTL     = 24 * time.Hour
	staleAlertPrefix  = "shift:stale-alert:"
)

// AlertDeduper reports whether an alert for shiftID is being raised for the
// first time within its TTL.
type AlertDeduper interface {
	FirstAlert(ctx context.Context, shiftID uuid.UUID) (bool, error)
}

type redisAlertDeduper struct{ rdb *redis.Client }

func NewRedisAlertDeduper(rdb *redis.Client) AlertDeduper {
	return &redisAlertDeduper{rdb: rdb}
}

func (d *redisAlertDeduper) FirstAlert(ctx context.Context, shiftID uuid.UUID) (bool, error) {
	return d.rdb.SetNX(ctx, staleAlertPrefix+shiftID.String(), time.Now().UTC().Format(time.RFC3339), staleAlertTTL).Result()
}

// EmailEnqueuer is the part of Dispatcher the monitor needs.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

// StaleMonitorConfig holds all dependencies for the monitor goroutine.
type StaleMonitorConfig struct {
	Shifts    repository.ShiftRepository
	Deduper   AlertDeduper
	Emails    EmailEnqueuer
	Recipient string
	Location  *time.Location
	// StaleDays is how many days past its operating date an open shift
	// may stay before it is reported.
	StaleDays int
	Interval  time.Duration
	Now       func() time.Time
}

// StartStaleMonitor launches the ticker goroutine. It respects ctx for
// graceful shutdown.
func StartStaleMonitor(ctx context.Context, cfg StaleMonitorConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = staleTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("stale_monitor: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stale_monitor: shutting down")
				return
			case <-ticker.C:
				if _, err := CheckStaleShifts(ctx, cfg); err != nil {
					log.Error().Err(err).Msg("stale_monitor: tick failed")
				}
			}
		}
	}()
}

// CheckStaleShifts runs one pass and returns how many alerts were enqueued.
func CheckStaleShifts(ctx context.Context, cfg StaleMonitorConfig) (int, error) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	days := cfg.StaleDays
	if days < 1 {
		days = 1
	}

	cutoff := model.DateOf(now().In(loc).AddDate(0, 0, -(days - 1)))
	shifts, err := cfg.Shifts.ListStaleOpen(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale shifts: %w", err)
	}
	if len(shifts) == 0 {
		return 0, nil
	}

	log.Warn().Int("count", len(shifts)).Msg("stale_monitor: open shifts past their operating date")

	sent := 0
	for i := range shifts {
		s := &shifts[i]
		first, err := cfg.Deduper.FirstAlert(ctx, s.ID)
		if err != nil {
			log.Error().Err(err).Str("shift_id", s.ID.String()).Msg("stale_monitor: dedupe check failed")
			continue
		}
		if !first {
			continue
		}
		if cfg.Recipient == "" {
			log.Warn().Str("shift_id", s.ID.String()).Msg("stale_monitor: no recipient configured, alert logged only")
			continue
		}
		payload := EmailJobPayload{
			ToEmail: cfg.Recipient,
			Subject: fmt.Sprintf("Shift still open: till %s, %s", s.TillID, model.FormatDate(s.OperatingDate)),
			Body: fmt.Sprintf("Shift %s on till %s (outlet %s) opened %s is still OPEN.",
				s.ID, s.TillID, s.OutletID, s.StartedAt.UTC().Format(time.RFC3339)),
		}
		if err := cfg.Emails.EnqueueEmail(ctx, payload); err != nil {
			log.Error().Err(err).Str("shift_id", s.ID.String()).Msg("stale_monitor: enqueue failed")
			continue
		}
		sent++
	}
	return sent, nil
}
