package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/logging"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
)

func TestLocalRunsEveryJob(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	d := NewLocal(func(ctx context.Context, call domain.Call) {
		mu.Lock()
		seen[call.CallID]++
		mu.Unlock()
	}, 3, 8, logging.Discard(), nil)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := d.Dispatch(context.Background(), domain.Call{CallID: id}); err != nil {
			t.Fatalf("Dispatch(%s): %v", id, err)
		}
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if seen[id] != 1 {
			t.Errorf("job %s ran %d times", id, seen[id])
		}
	}
}

func TestLocalOverflowDoesNotDrop(t *testing.T) {
	release := make(chan struct{})
	var ran atomic.Int32
	m := metrics.New(prometheus.NewRegistry())
	d := NewLocal(func(ctx context.Context, call domain.Call) {
		<-release
		ran.Add(1)
	}, 1, 1, logging.Discard(), m)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := d.Dispatch(context.Background(), domain.Call{CallID: "c"}); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > time.Second {
		t.Fatal("Dispatch blocked on a full queue")
	}

	close(release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 5 {
		t.Fatalf("ran=%d want 5", ran.Load())
	}
	queued := testutil.ToFloat64(m.DispatchQueued.WithLabelValues(PathQueued))
	overflow := testutil.ToFloat64(m.DispatchQueued.WithLabelValues(PathOverflow))
	if queued+overflow != 5 || overflow < 3 {
		t.Errorf("queued=%v overflow=%v", queued, overflow)
	}
}

func TestLocalRecoversFromPanics(t *testing.T) {
	var ran atomic.Int32
	d := NewLocal(func(ctx context.Context, call domain.Call) {
		if call.CallID == "boom" {
			panic("summarizer exploded")
		}
		ran.Add(1)
	}, 1, 4, logging.Discard(), nil)

	_ = d.Dispatch(context.Background(), domain.Call{CallID: "boom"})
	_ = d.Dispatch(context.Background(), domain.Call{CallID: "ok"})
	_ = d.Close(context.Background())
	if ran.Load() != 1 {
		t.Fatalf("worker did not survive the panic, ran=%d", ran.Load())
	}
}

func TestLocalDispatchAfterClose(t *testing.T) {
	d := NewLocal(func(context.Context, domain.Call) {}, 1, 1, logging.Discard(), nil)
	_ = d.Close(context.Background())
	if err := d.Dispatch(context.Background(), domain.Call{CallID: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLocalCloseDeadlineCancelsJobs(t *testing.T) {
	d := NewLocal(func(ctx context.Context, call domain.Call) {
		<-ctx.Done()
	}, 1, 1, logging.Discard(), nil)
	_ = d.Dispatch(context.Background(), domain.Call{CallID: "slow"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}
