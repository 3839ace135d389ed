package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/queue"
)

func TestPublisher_EnqueueValidates(t *testing.T) {
	q := queue.NewMemoryQueue(2)
	p := NewPublisher(q)

	_, err := p.Enqueue(context.Background(), leads.Submission{Name: "x"})
	assert.ErrorIs(t, err, leads.ErrMissingContact)

	jobID, err := p.Enqueue(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
}

func TestWorker_ProcessesIntakeJob(t *testing.T) {
	f := newFixture(t, result(leads.ClassificationLowQuality, 0.95), autoConfig(), 0.1)
	q := queue.NewMemoryQueue(4)
	p := NewPublisher(q)

	_, err := p.Enqueue(context.Background(), submission)
	require.NoError(t, err)

	w := NewWorker(f.service, q, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(f.deliverer.Delivered()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	w.Wait()

	require.Len(t, f.deliverer.Delivered(), 1)
	stored, err := f.repo.GetByID(context.Background(), f.deliverer.Delivered()[0])
	require.NoError(t, err)
	assert.Equal(t, leads.StatusDone, stored.Status.Status)
}

func TestWorker_RedeliveryConvergesOnOneLead(t *testing.T) {
	// Budget exactly one rollout draw: a redraw trips the fixture.
	f := newFixture(t, result(leads.ClassificationLowQuality, 0.95), autoConfig(), 0.1)
	f.deliverer.err = errors.New("smtp down")
	q := queue.NewMemoryQueue(4)
	p := NewPublisher(q)

	jobID, err := p.Enqueue(context.Background(), submission)
	require.NoError(t, err)

	w := NewWorker(f.service, q, nil)
	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)

	// First attempt persists the lead done but delivery fails, so the
	// message is not deleted and comes back.
	w.handleMessage(context.Background(), msgs[0])
	stored, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, leads.StatusDone, stored.Status.Status)

	f.deliverer.err = nil
	w.handleMessage(context.Background(), msgs[0])

	done, err := f.repo.ListByStatus(context.Background(), leads.StatusDone, 10)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, jobID, done[0].ID)
	assert.Empty(t, f.draws, "draw budget not fully consumed")
}

func TestWorker_DropsMalformedJob(t *testing.T) {
	f := newFixture(t, result(leads.ClassificationLowQuality, 0.95), autoConfig())
	q := queue.NewMemoryQueue(2)
	require.NoError(t, q.Send(context.Background(), "not json"))

	w := NewWorker(f.service, q, nil)
	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	w.handleMessage(context.Background(), msgs[0])

	assert.Zero(t, f.classifier.calls)
}
