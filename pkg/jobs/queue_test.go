package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job[string]) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("smtp down")
		}
		assert.Equal(t, "ana@example.com", job.Payload)
		assert.Equal(t, 2, job.Attempt)
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue("ana@example.com")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueDropsAfterMaxRetries(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	dropCh := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job[int]) error {
		return errors.New("always failing")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond, OnDrop: func(id string, err error) {
		mu.Lock()
		dropped = append(dropped, id)
		mu.Unlock()
		close(dropCh)
	}})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(7)
	require.NoError(t, err)

	select {
	case <-dropCh:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dropped")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{id}, dropped)
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("mail", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(1)
	assert.ErrorIs(t, err, ErrQueueClosed)

	q.Start(context.Background())
	q.Stop()
	_, err = q.Enqueue(1)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
