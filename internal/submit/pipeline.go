package submit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/transport"
)

// Status is the outcome class of a submission.
type Status string

const (
	StatusAccepted      Status = "accepted"
	StatusQueuedOffline Status = "queued_offline"
	StatusRejected      Status = "rejected"
)

// Result is the outcome of submitting an attempt. Retryable transport
// failures land in the offline queue; a rejection the server will never
// accept is surfaced as StatusRejected with the reason, not queued.
type Result struct {
	Status        Status    `json:"status"`
	RemoteID      string    `json:"remote_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	AutoSubmitted bool      `json:"auto_submitted"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Pipeline attempts online submission and falls back to the offline queue.
type Pipeline struct {
	client transport.Client
	queue  *Queue
	log    zerolog.Logger
}

// NewPipeline wires a pipeline to its transport and queue.
func NewPipeline(client transport.Client, queue *Queue, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		queue:  queue,
		log:    log.With().Str("component", "submission_pipeline").Logger(),
	}
}

// Submit tries the transport once. On success the result carries the remote
// attempt id. Only retryable failures are enqueued for a later drain; a
// non-retryable rejection would fail every retry, so it is reported as
// Rejected instead. Retry bookkeeping happens at drain time, not here.
func (p *Pipeline) Submit(ctx context.Context, payload transport.AttemptPayload) Result {
	remoteID, err := p.client.SubmitAttempt(ctx, payload)
	if err == nil {
		return Result{Status: StatusAccepted, RemoteID: remoteID}
	}

	if !transport.IsRetryable(err) {
		p.log.Error().
			Err(err).
			Str("session_id", payload.SessionID).
			Msg("Submission permanently rejected")
		return Result{Status: StatusRejected, Error: err.Error()}
	}

	p.log.Warn().
		Err(err).
		Str("session_id", payload.SessionID).
		Msg("Online submission failed, queueing offline")

	item := Item{Payload: payload, CreatedAt: time.Now().UTC(), LastError: err.Error()}
	if qErr := p.queue.Enqueue(ctx, item); qErr != nil {
		p.log.Error().Err(qErr).Str("session_id", payload.SessionID).Msg("Persist queued submission")
	}
	return Result{Status: StatusQueuedOffline}
}
