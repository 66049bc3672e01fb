package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/jobradar/vacancy-scraper/internal/worker"
)

func TestRun_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	d := New([]*worker.Worker{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
}
