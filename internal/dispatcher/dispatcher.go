// Package dispatcher manages worker fan-out over the run queue.
package dispatcher

import (
	"context"
	"sync"

	"github.com/jobradar/vacancy-scraper/internal/worker"
)

// Dispatcher fans queued scrape runs out to a bounded pool of workers.
type Dispatcher struct {
	workers []*worker.Worker
}

// New creates a Dispatcher over the given worker pool.
func New(workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Run starts all workers and blocks until the context finishes and
// every worker has drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
