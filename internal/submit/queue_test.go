package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/exam"
	"github.com/prepdeck/prepdeck/internal/store"
	"github.com/prepdeck/prepdeck/internal/transport"
)

// scriptedClient fails SubmitAttempt a configured number of times before
// succeeding.
type scriptedClient struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (c *scriptedClient) FetchTest(context.Context, string) (exam.TestDefinition, []exam.Question, error) {
	return exam.TestDefinition{}, nil, errors.New("not implemented")
}

func (c *scriptedClient) SubmitAttempt(context.Context, transport.AttemptPayload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		if c.err != nil {
			return "", c.err
		}
		return "", &transport.Error{Op: "submit_attempt", Status: 502, Retryable: true, Err: errors.New("bad gateway")}
	}
	return "remote-1", nil
}

func testItem(sessionID string) Item {
	return Item{
		Payload: transport.AttemptPayload{
			SessionID:  sessionID,
			TestID:     "test-1",
			ElapsedSec: 600,
			Answers:    []exam.AnswerRecord{{QuestionID: "q1", SelectedOptionIDs: []string{"a"}}},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestQueue_DrainRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	q, err := OpenQueue(ctx, kv, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, testItem("sess-1")))

	client := &scriptedClient{failures: 3}

	// Three failing drains: retry count progresses 1 -> 2 -> 3.
	for i := 1; i <= 3; i++ {
		report := q.DrainOnce(ctx, client)
		assert.Empty(t, report.Succeeded)
		assert.Empty(t, report.Failed)
		assert.Equal(t, 1, report.Remaining)

		q.mu.Lock()
		assert.Equal(t, i, q.items[0].RetryCount)
		q.mu.Unlock()
	}

	// Connectivity is back: the item delivers and leaves the queue.
	report := q.DrainOnce(ctx, client)
	assert.Equal(t, []string{"sess-1"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DropsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, testItem("sess-1")))

	client := &scriptedClient{failures: 100}

	var report DrainReport
	for i := 0; i < MaxRetries; i++ {
		report = q.DrainOnce(ctx, client)
	}

	// The fifth failure removes the item and reports it permanently failed.
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "sess-1", report.Failed[0].SessionID)
	assert.Equal(t, MaxRetries, report.Failed[0].Attempts)
	assert.NotEmpty(t, report.Failed[0].LastError)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NonRetryableDropsImmediately(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, testItem("sess-1")))

	client := &scriptedClient{
		failures: 100,
		err:      &transport.Error{Op: "submit_attempt", Status: 422, Retryable: false, Err: errors.New("validation failed")},
	}

	report := q.DrainOnce(ctx, client)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	q1, err := OpenQueue(ctx, kv, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, q1.Enqueue(ctx, testItem("sess-1")))
	require.NoError(t, q1.Enqueue(ctx, testItem("sess-2")))

	// Simulate process restart.
	q2, err := OpenQueue(ctx, kv, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, q2.Len())

	report := q2.DrainOnce(ctx, &scriptedClient{})
	assert.Equal(t, []string{"sess-1", "sess-2"}, report.Succeeded)
	assert.Equal(t, 0, report.Remaining)

	// The drained state is durable too.
	q3, err := OpenQueue(ctx, kv, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, q3.Len())
}

func TestQueue_DrainEmpty(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)

	report := q.DrainOnce(ctx, &scriptedClient{})
	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 0, report.Remaining)
}
