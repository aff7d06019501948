package worker

// dlq.go: jobs that exhaust MaxAttempts, or cannot be decoded, are parked in
// dlq:{queue}. The lists are capped; /health reports their depth.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix = "dlq:"
	// dlqMaxLen keeps the newest entries only.
	dlqMaxLen = 1000
)

// DLQEntry is one parked job. ShiftID is lifted out of shift report payloads
// so a stuck report can be traced back without decoding the payload.
type DLQEntry struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	ShiftID  string          `json:"shift_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

func newDLQEntry(queue, jobType string, payload json.RawMessage, reason string, attempts int, at time.Time) DLQEntry {
	entry := DLQEntry{
		Queue:    queue,
		JobType:  jobType,
		Payload:  payload,
		Reason:   reason,
		Attempts: attempts,
		FailedAt: at.UTC(),
	}
	if jobType == JobShiftReport || queue == QueueShiftReport {
		var p ShiftReportPayload
		if json.Unmarshal(payload, &p) == nil {
			entry.ShiftID = p.ShiftID
		}
	}
	return entry
}

// SendToDLQ parks a failed job. Failures to park are logged, never returned:
// the job is already lost to the live queue.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := newDLQEntry(queue, jobType, payload, reason, attempts, time.Now())
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}

	key := DLQPrefix + queue
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, dlqMaxLen-1)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("dlq_key", key).Str("shift_id", entry.ShiftID).Msg("dlq: push failed")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("shift_id", entry.ShiftID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job parked")
}

// DLQDepths returns the number of parked jobs per live queue.
func DLQDepths(ctx context.Context, rdb *redis.Client) (map[string]int64, error) {
	queues := []string{QueueShiftReport, QueueEmail}
	cmds := make([]*redis.IntCmd, len(queues))
	_, err := rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, q := range queues {
			cmds[i] = pipe.LLen(ctx, DLQPrefix+q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	depths := make(map[string]int64, len(queues))
	for i, q := range queues {
		depths[q] = cmds[i].Val()
	}
	return depths, nil
}
