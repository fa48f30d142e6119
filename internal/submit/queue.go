// Package submit delivers completed attempts to the backend. The Pipeline
// tries the network once and falls back to a durable offline queue; the queue
// is drained when the host signals connectivity and drops items only after a
// bounded number of retries.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/store"
	"github.com/prepdeck/prepdeck/internal/transport"
)

// MaxRetries is the drop ceiling: an item that has failed this many drain
// attempts is removed and reported as permanently failed.
const MaxRetries = 5

// QueueKey is the persistence key for the serialized queue.
const QueueKey = "offlineQueue"

// Item is one pending submission.
type Item struct {
	Payload    transport.AttemptPayload `json:"payload"`
	CreatedAt  time.Time                `json:"created_at"`
	RetryCount int                      `json:"retry_count"`
	LastError  string                   `json:"last_error,omitempty"`
}

// PermanentFailure describes an item dropped after exhausting retries, for
// user-facing error surfacing.
type PermanentFailure struct {
	SessionID string
	Attempts  int
	LastError string
}

// DrainReport summarizes one pass over the queue.
type DrainReport struct {
	Succeeded []string // session ids delivered this pass
	Failed    []PermanentFailure
	Remaining int // items still queued after the pass
}

// Queue is the durable, retry-bounded offline submission queue. It has its
// own lock so drains never block the session engine, and it persists through
// the same key-value store the session snapshots use.
type Queue struct {
	mu    sync.Mutex
	kv    store.KV
	items []Item
	log   zerolog.Logger
}

// OpenQueue loads any persisted items and returns the queue.
func OpenQueue(ctx context.Context, kv store.KV, log zerolog.Logger) (*Queue, error) {
	q := &Queue{kv: kv, log: log.With().Str("component", "offline_queue").Logger()}

	b, ok, err := kv.Get(ctx, QueueKey)
	if err != nil {
		return nil, fmt.Errorf("load offline queue: %w", err)
	}
	if ok {
		if err := json.Unmarshal(b, &q.items); err != nil {
			return nil, fmt.Errorf("decode offline queue: %w", err)
		}
	}
	return q, nil
}

// Enqueue appends an item and persists the queue. The item is kept in memory
// even if persistence fails, so it can still be drained this process run.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	q.log.Info().Str("session_id", item.Payload.SessionID).Int("queued", len(q.items)).Msg("Submission queued offline")
	return q.persistLocked(ctx)
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainOnce attempts every queued item once. Items that fail a retryable
// error have their retry count incremented and are kept until the count
// reaches MaxRetries; non-retryable failures are dropped immediately. The
// network calls run outside the queue lock so Enqueue stays non-blocking.
func (q *Queue) DrainOnce(ctx context.Context, client transport.Client) DrainReport {
	q.mu.Lock()
	batch := make([]Item, len(q.items))
	copy(batch, q.items)
	q.mu.Unlock()

	var report DrainReport
	kept := make([]Item, 0, len(batch))

	for _, item := range batch {
		remoteID, err := client.SubmitAttempt(ctx, item.Payload)
		if err == nil {
			q.log.Info().
				Str("session_id", item.Payload.SessionID).
				Str("remote_id", remoteID).
				Msg("Queued submission delivered")
			report.Succeeded = append(report.Succeeded, item.Payload.SessionID)
			continue
		}

		item.RetryCount++
		item.LastError = err.Error()

		if !transport.IsRetryable(err) || item.RetryCount >= MaxRetries {
			q.log.Error().
				Str("session_id", item.Payload.SessionID).
				Int("attempts", item.RetryCount).
				Str("last_error", item.LastError).
				Msg("Dropping submission after exhausting retries")
			report.Failed = append(report.Failed, PermanentFailure{
				SessionID: item.Payload.SessionID,
				Attempts:  item.RetryCount,
				LastError: item.LastError,
			})
			continue
		}

		q.log.Warn().
			Str("session_id", item.Payload.SessionID).
			Int("retry_count", item.RetryCount).
			Msg("Queued submission failed, keeping for next drain")
		kept = append(kept, item)
	}

	q.mu.Lock()
	// Items enqueued while the batch was in flight sit past the snapshot
	// length; carry them over untouched.
	q.items = append(kept, q.items[len(batch):]...)
	report.Remaining = len(q.items)
	if err := q.persistLocked(ctx); err != nil {
		q.log.Error().Err(err).Msg("Persist offline queue after drain")
	}
	q.mu.Unlock()

	return report
}

func (q *Queue) persistLocked(ctx context.Context) error {
	b, err := json.Marshal(q.items)
	if err != nil {
		return fmt.Errorf("encode offline queue: %w", err)
	}
	if err := q.kv.Set(ctx, QueueKey, b); err != nil {
		return fmt.Errorf("persist offline queue: %w", err)
	}
	return nil
}
