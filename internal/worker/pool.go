package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueShiftReport = "jobs:shift_report"
	QueueEmail       = "jobs:email"

	JobShiftReport = "shift_report"
	JobEmail       = "email"

	// MaxAttempts before a job is parked in the DLQ.
	MaxAttempts = 3
)

var errUnknownJob = errors.New("unknown job type")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Processor handles one job payload. A returned error triggers a retry.
type Processor interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers maps job types to processors. Nil entries drop the job.
type WorkerHandlers struct {
	ShiftReport Processor
	Email       Processor
}

func (h *WorkerHandlers) process(ctx context.Context, job Job) error {
	var p Processor
	switch job.Type {
	case JobShiftReport:
		p = h.ShiftReport
	case JobEmail:
		p = h.Email
	default:
		return fmt.Errorf("%w: %q", errUnknownJob, job.Type)
	}
	if p == nil {
		log.Warn().Str("type", job.Type).Msg("worker: no processor wired, dropping job")
		return nil
	}
	return p.Process(ctx, job.Payload)
}

// Dispatcher enqueues async jobs into Redis lists (LPUSH); the pool
// consumes them with BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ShiftReportPayload is the job body for QueueShiftReport.
type ShiftReportPayload struct {
	ShiftID string `json:"shift_id"`
}

// EnqueueShiftReport implements service.ReportDispatcher.
func (d *Dispatcher) EnqueueShiftReport(ctx context.Context, shiftID uuid.UUID) error {
	return d.enqueue(ctx, QueueShiftReport, JobShiftReport, ShiftReportPayload{ShiftID: shiftID.String()})
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.push(ctx, queue, Job{Type: jobType, Payload: data})
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// The returned WaitGroup completes once every worker has seen ctx.Done().
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) *sync.WaitGroup {
	d := NewDispatcher(rdb)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, d, handlers, id)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
	return &wg
}

// Backoff between polls while Redis is failing. Doubles per failure up to
// the max and resets on the next successful pop.
var (
	popRetryDelay    = 500 * time.Millisecond
	popRetryMaxDelay = 10 * time.Second
)

// popFunc blocks for the next job. redis.Nil means the wait timed out empty.
type popFunc func(ctx context.Context) (queue, raw string, err error)

func runWorker(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, id int) {
	queues := []string{QueueShiftReport, QueueEmail}
	pop := func(ctx context.Context) (string, string, error) {
		// Blocking pop: waits up to 5s then loops to check ctx
		result, err := d.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
		if err != nil {
			return "", "", err
		}
		if len(result) < 2 {
			return "", "", redis.Nil
		}
		return result[0], result[1], nil
	}
	pollLoop(ctx, id, pop, func(queue, raw string) { handle(ctx, d, handlers, queue, raw) })
}

func pollLoop(ctx context.Context, id int, pop popFunc, handleJob func(queue, raw string)) {
	delay := popRetryDelay
	failing := false
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}

		queue, raw, err := pop(ctx)
		switch {
		case err == nil:
			if failing {
				log.Info().Int("worker", id).Msg("worker: queue reachable again")
				failing, delay = false, popRetryDelay
			}
			handleJob(queue, raw)
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
		default:
			// logged once per outage
			if !failing {
				log.Error().Err(err).Int("worker", id).Msg("worker: queue unreachable, backing off")
				failing = true
			}
			select {
			case <-ctx.Done():
				log.Info().Msgf("worker %d shutting down", id)
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, popRetryMaxDelay)
		}
	}
}

func handle(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: failed to unmarshal job")
		SendToDLQ(ctx, d.rdb, queue, "", json.RawMessage(raw), "unmarshal: "+err.Error(), 0)
		return
	}

	err := handlers.process(ctx, job)
	if err == nil {
		return
	}
	job.Attempts++
	if errors.Is(err, errUnknownJob) || job.Attempts >= MaxAttempts {
		SendToDLQ(ctx, d.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("worker: job failed, requeueing")
	if perr := d.push(ctx, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("worker: requeue failed")
	}
}
