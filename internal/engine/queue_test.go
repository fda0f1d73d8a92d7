package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := newQueue[Command]()

	ok := q.Enqueue(SetRods(40))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, CommandSetRods, got.Kind)
	assert.Equal(t, 40.0, got.Position)
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_TryDequeue_Empty(t *testing.T) {
	q := newQueue[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := newQueue[int]()
	q.Close()

	assert.False(t, q.Enqueue(1), "enqueue after close should fail")
	assert.True(t, q.Drained())
}

func TestQueue_CloseKeepsPendingItems(t *testing.T) {
	q := newQueue[int]()
	q.Enqueue(7)
	q.Close()

	assert.False(t, q.Drained())
	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 7, got)
	assert.True(t, q.Drained())
}

func TestQueue_CloseWakesWaiter(t *testing.T) {
	q := newQueue[int]()
	woke := make(chan struct{})

	go func() {
		<-q.Wait()
		close(woke)
	}()

	q.Close()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Close")
	}
}

func TestQueue_SignalCoalesces(t *testing.T) {
	q := newQueue[int]()
	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 10, q.Len())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := newQueue[int]()
	const producers = 20
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
