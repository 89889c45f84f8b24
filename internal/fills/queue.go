package fills

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

// Worker processes one queued item. Only one invocation is ever in flight,
// so side effects observe strict FIFO order.
type Worker[T any] func(ctx context.Context, item T)

// FetchQueue serializes per-message REST round-trips (e.g. fee detail for
// private order updates) through a FIFO queue drained by a periodic timer.
// One task per message would reorder fills relative to each other; the
// single in-flight worker cannot.
type FetchQueue[T any] struct {
	interval time.Duration
	worker   Worker[T]

	mu    sync.Mutex
	items []T

	cancel    context.CancelFunc
	wg        conc.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewFetchQueue constructs a queue drained every interval.
func NewFetchQueue[T any](interval time.Duration, worker Worker[T]) *FetchQueue[T] {
	if interval <= 0 {
		interval = time.Second
	}
	return &FetchQueue[T]{interval: interval, worker: worker}
}

// Start launches the drain loop. Subsequent calls are no-ops.
func (q *FetchQueue[T]) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		q.wg.Go(func() {
			q.run(runCtx)
		})
	})
}

// Enqueue appends items in arrival order.
func (q *FetchQueue[T]) Enqueue(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Len reports the number of queued items awaiting the next drain.
func (q *FetchQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the drain loop and waits for the in-flight item, if any.
// Idempotent.
func (q *FetchQueue[T]) Close() {
	q.closeOnce.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		q.wg.Wait()
	})
}

func (q *FetchQueue[T]) run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drain(ctx)
		}
	}
}

func (q *FetchQueue[T]) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, ok := q.pop()
		if !ok {
			return
		}
		if q.worker != nil {
			q.worker(ctx, item)
		}
	}
}

func (q *FetchQueue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}
