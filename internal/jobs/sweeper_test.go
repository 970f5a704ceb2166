package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/millionx-hackathon/educational-voice-agent/internal/logging"
)

type staticSessions struct {
	mu     sync.Mutex
	ids    []string
	maxAge time.Duration
}

func (s *staticSessions) Expired(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxAge = maxAge
	out := s.ids
	s.ids = nil
	return out
}

type recordingTerminator struct {
	mu      sync.Mutex
	ended   []string
	reasons []string
	known   map[string]bool
}

func (r *recordingTerminator) Terminate(ctx context.Context, callID, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[callID] {
		return false
	}
	delete(r.known, callID)
	r.ended = append(r.ended, callID)
	r.reasons = append(r.reasons, reason)
	return true
}

func (r *recordingTerminator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ended)
}

func TestSweep(t *testing.T) {
	sessions := &staticSessions{ids: []string{"CA1", "CA2", "gone"}}
	term := &recordingTerminator{known: map[string]bool{"CA1": true, "CA2": true}}
	s, err := NewSweeper(sessions, term, time.Minute, 90*time.Minute, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Sweep(context.Background()); got != 2 {
		t.Fatalf("Sweep=%d want 2", got)
	}
	if sessions.maxAge != 90*time.Minute {
		t.Errorf("maxAge=%v", sessions.maxAge)
	}
	for _, r := range term.reasons {
		if r != "sweeper" {
			t.Errorf("reason=%q", r)
		}
	}
	if got := s.Sweep(context.Background()); got != 0 {
		t.Errorf("second Sweep=%d", got)
	}
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	sessions := &staticSessions{ids: []string{"CA9"}}
	term := &recordingTerminator{known: map[string]bool{"CA9": true}}
	s, err := NewSweeper(sessions, term, 20*time.Millisecond, time.Minute, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for term.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if term.count() != 1 {
		t.Fatalf("scheduled sweep did not run, ended=%d", term.count())
	}
}
