// Package transport talks to the learning platform backend. It fetches test
// content and submits completed attempts, classifying failures as retryable
// (timeout, 5xx, no connectivity) or not (4xx validation) so the caller can
// decide what belongs in the offline queue.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prepdeck/prepdeck/internal/exam"
)

// AttemptPayload is a full submission: the session, every captured answer,
// and the elapsed time.
type AttemptPayload struct {
	SessionID  string              `json:"session_id"`
	TestID     string              `json:"test_id"`
	ElapsedSec int                 `json:"elapsed_sec"`
	Answers    []exam.AnswerRecord `json:"answers"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Client is the network boundary the session engine depends on.
type Client interface {
	FetchTest(ctx context.Context, testID string) (exam.TestDefinition, []exam.Question, error)
	SubmitAttempt(ctx context.Context, payload AttemptPayload) (remoteID string, err error)
}

// Error is a classified transport failure.
type Error struct {
	Op        string // "fetch_test" or "submit_attempt"
	Status    int    // HTTP status, 0 when the request never completed
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying later. Unclassified
// errors are treated as retryable so a submission is never dropped on an
// unexpected failure mode.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}
