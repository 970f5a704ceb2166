package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
)

// Local runs jobs on a fixed pool of goroutines fed by a bounded channel.
// When the channel is full the job is started on its own goroutine so that
// no terminated call is ever dropped.
type Local struct {
	handler Handler
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	jobs chan domain.Call
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocal starts workers goroutines reading from a queue of queueSize.
func NewLocal(handler Handler, workers, queueSize int, log logrus.FieldLogger, m *metrics.Metrics) *Local {
	if workers <= 0 {
		workers = 4
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Local{
		handler: handler,
		log:     log,
		metrics: m,
		jobs:    make(chan domain.Call, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Local) worker() {
	defer d.wg.Done()
	for call := range d.jobs {
		run(d.ctx, d.handler, call, d.log)
	}
}

// Dispatch enqueues call and returns immediately.
func (d *Local) Dispatch(_ context.Context, call domain.Call) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- call:
		d.metrics.RecordDispatch(PathQueued)
	default:
		d.metrics.RecordDispatch(PathOverflow)
		d.log.WithField("call_id", call.CallID).Warn("summary queue full, running job on a dedicated goroutine")
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			run(d.ctx, d.handler, call, d.log)
		}()
	}
	return nil
}

// Close stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, in-flight jobs see their context cancelled.
func (d *Local) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
