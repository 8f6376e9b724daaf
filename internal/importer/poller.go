package importer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lthibault/jitterbug/v2"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
)

// checkFunc returns true when polling should end.
type checkFunc func(ctx context.Context) bool

// poller runs a check once right away and then on every tick until the check
// reports completion or Stop is called.
type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startPoller(ctx context.Context, interval, jitter time.Duration, active *atomic.Int32, check checkFunc) *poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &poller{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	active.Add(1)
	go func() {
		defer close(p.done)
		defer active.Add(-1)
		defer cancel()
		defer utilruntime.HandleCrash()

		// jobs may finish before the first tick
		if check(ctx) {
			return
		}

		ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: jitter})
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if ctx.Err() != nil || check(ctx) {
				return
			}
		}
	}()

	return p
}

// Stop cancels the poller and waits for its goroutine to exit. It must not be
// called from inside the check function.
func (p *poller) Stop() {
	p.cancel()
	<-p.done
}
