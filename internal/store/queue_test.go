package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(id int, out *[]int) job {
	return job{
		ctx: context.Background(),
		fn: func(context.Context, *Conn) error {
			*out = append(*out, id)
			return nil
		},
		done: make(chan error, 1),
	}
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	var order []int

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(testJob(i, &order)))
	}
	assert.Equal(t, 3, q.Len())

	for {
		j, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.NoError(t, j.fn(j.ctx, nil))
	}
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestJobQueue_TryDequeue_Empty(t *testing.T) {
	q := newJobQueue()
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue()
	var order []int
	require.True(t, q.Enqueue(testJob(1, &order)))

	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(testJob(2, &order)), "closed queue rejects jobs")
	assert.False(t, q.Drained(), "queued job still pending")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed queue should wake waiters")
	}
}

func TestJobQueue_SignalCoalesces(t *testing.T) {
	q := newJobQueue()
	var order []int
	q.Enqueue(testJob(1, &order))
	q.Enqueue(testJob(2, &order))

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}
