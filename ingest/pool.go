package ingest

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Submit when the work queue is at capacity.
var ErrQueueFull = errors.New("ingest: work queue full")

// Pool processes documents concurrently. Each worker runs the full pipeline
// for one document at a time; documents are independent, so workers need no
// coordination beyond the store.
type Pool struct {
	proc    *Processor
	queue   chan string
	workers int

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewPool creates a pool of workers reading document IDs from a buffered queue.
func NewPool(proc *Processor, workers, queueDepth int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Pool{
		proc:    proc,
		queue:   make(chan string, queueDepth),
		workers: workers,
	}
}

// Start launches the workers. They exit when the context is cancelled or
// Stop closes the queue.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-p.queue:
					if !ok {
						return
					}
					// Process logs and records failures itself; one bad
					// document must not take the worker down.
					_ = p.proc.Process(ctx, id)
				}
			}
		}()
	}
}

// Submit enqueues a document for extraction. Non-blocking.
func (p *Pool) Submit(documentID string) error {
	select {
	case p.queue <- documentID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight documents to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	close(p.queue)
	p.wg.Wait()
}

// Recover re-queues documents stuck in "processing" from a previous crash.
// Call once at boot before accepting new uploads.
func (p *Pool) Recover() (int, error) {
	ids, err := p.proc.Store.ListDocumentIDsByStatus("processing")
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, id := range ids {
		if err := p.Submit(id); err != nil {
			p.proc.Logger.Warn("recovery: queue full, document left in processing", "document_id", id)
			break
		}
		requeued++
	}
	return requeued, nil
}
