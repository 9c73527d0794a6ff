package crawler

import (
	"context"
	"sync"

	"github.com/JakeFAU/vies-crawler/internal/queue/memory"
)

type poolResult[T any] struct {
	outs []Output[T]
	ok   bool
}

// runPool processes the queue with Concurrency workers. The calling goroutine
// stays the only owner of the queue and the only caller of yield; workers
// just run process. Follow-ups join the queue in completion order, so a
// chain's next hop still only exists after its parent was parsed.
func (e *Engine[T]) runPool(ctx context.Context, q *memory.Queue[Work[T]], yield func(T) bool) {
	ctx, cancel := context.WithCancel(ctx)
	tasks := make(chan Work[T])
	results := make(chan poolResult[T])

	var wg sync.WaitGroup
	for range e.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range tasks {
				outs, ok := e.process(ctx, w)
				select {
				case results <- poolResult[T]{outs: outs, ok: ok}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	defer func() {
		cancel()
		close(tasks)
		wg.Wait()
	}()

	inflight := 0
	for {
		var send chan Work[T]
		next, pending := q.Peek()
		if pending && ctx.Err() == nil {
			send = tasks
		}
		if send == nil && inflight == 0 {
			return
		}
		select {
		case send <- next:
			q.Pop()
			inflight++
		case r := <-results:
			inflight--
			if r.ok && !e.dispatch(q, r.outs, yield) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
