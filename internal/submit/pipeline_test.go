package submit

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/store"
	"github.com/prepdeck/prepdeck/internal/transport"
)

func TestPipeline_AcceptedOnline(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	p := NewPipeline(&scriptedClient{}, q, zerolog.Nop())

	res := p.Submit(ctx, testItem("sess-1").Payload)

	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, "remote-1", res.RemoteID)
	assert.Equal(t, 0, q.Len())
}

func TestPipeline_QueuesOnFailure(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	p := NewPipeline(&scriptedClient{failures: 1}, q, zerolog.Nop())

	res := p.Submit(ctx, testItem("sess-1").Payload)

	assert.Equal(t, StatusQueuedOffline, res.Status)
	assert.Empty(t, res.RemoteID)
	require.Equal(t, 1, q.Len())

	// The queued item delivers on the next drain.
	report := q.DrainOnce(ctx, &scriptedClient{})
	assert.Equal(t, []string{"sess-1"}, report.Succeeded)
}

func TestPipeline_NonRetryableRejectionIsNotQueued(t *testing.T) {
	ctx := context.Background()
	q, err := OpenQueue(ctx, store.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	p := NewPipeline(&scriptedClient{
		failures: 1,
		err:      &transport.Error{Op: "submit_attempt", Status: 422, Retryable: false, Err: errors.New("validation failed")},
	}, q, zerolog.Nop())

	res := p.Submit(ctx, testItem("sess-1").Payload)

	// A rejection the server will never accept must not promise a retry.
	assert.Equal(t, StatusRejected, res.Status)
	assert.Contains(t, res.Error, "validation failed")
	assert.Equal(t, 0, q.Len())
}
