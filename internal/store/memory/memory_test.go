package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

func clockStore() (*Store, *time.Time) {
	s := NewStore()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s, &now
}

func TestSaveUpsertsByCallID(t *testing.T) {
	s, _ := clockStore()
	ctx := context.Background()
	first, err := s.Save(ctx, domain.Summary{CallID: "CA1", SummaryText: "Error processing call: timeout", Degraded: true})
	if err != nil || first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("first=%+v err=%v", first, err)
	}
	second, _ := s.Save(ctx, domain.Summary{CallID: "CA1", SummaryText: "Recovered"})
	if second.ID != first.ID {
		t.Fatalf("id changed: %s -> %s", first.ID, second.ID)
	}
	got, err := s.Get(ctx, first.ID)
	if err != nil || got.SummaryText != "Recovered" || got.Degraded {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	all, _ := s.List(ctx)
	if len(all) != 1 {
		t.Fatalf("records=%d", len(all))
	}
}

func TestListOrderingAndCallerFilter(t *testing.T) {
	s, _ := clockStore()
	ctx := context.Background()
	_, _ = s.Save(ctx, domain.Summary{CallID: "CA1", CallerID: "+1"})
	_, _ = s.Save(ctx, domain.Summary{CallID: "CA2", CallerID: "+2"})
	_, _ = s.Save(ctx, domain.Summary{CallID: "CA3", CallerID: "+1"})

	all, _ := s.List(ctx)
	if len(all) != 3 || all[0].CallID != "CA3" || all[2].CallID != "CA1" {
		t.Fatalf("order=%v", callIDs(all))
	}
	mine, _ := s.ListByCaller(ctx, "+1")
	if len(mine) != 2 || mine[0].CallID != "CA3" || mine[1].CallID != "CA1" {
		t.Fatalf("caller=%v", callIDs(mine))
	}
	none, _ := s.ListByCaller(ctx, "+999")
	if len(none) != 0 {
		t.Fatalf("unexpected %v", callIDs(none))
	}
}

func TestNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get err=%v", err)
	}
	if _, err := s.GetByCallID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByCallID err=%v", err)
	}
}

func callIDs(in []domain.Summary) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.CallID
	}
	return out
}
