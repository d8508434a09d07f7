package cycles

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNextMondayFromMidweek(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 9, 2, 15, 30, 0, 0, time.UTC)
	got := nextMonday(now)
	want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextMonday(%v) = %v, want %v", now, got, want)
	}
}

func TestNextMondayFromMondaySkipsToFollowingWeek(t *testing.T) {
	now := time.Date(2026, 9, 7, 6, 0, 0, 0, time.UTC)
	got := nextMonday(now)
	want := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("a run on Monday plans the following week, got %v", got)
	}
}

func TestNextMondayFromSunday(t *testing.T) {
	now := time.Date(2026, 9, 6, 23, 59, 0, 0, time.UTC)
	got := nextMonday(now)
	want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextMonday(%v) = %v, want %v", now, got, want)
	}
}

type heldLease struct {
	acquired bool
	released int
}

func (l *heldLease) Acquire(ctx context.Context, tenantID uuid.UUID, kind string, ttl time.Duration) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

func (l *heldLease) Close() error { return nil }

func TestRunWeeklySkipsWhenLeaseIsHeld(t *testing.T) {
	r := &Runner{lease: &heldLease{acquired: false}}
	_, err := r.RunWeekly(context.Background(), uuid.New())
	if !errors.Is(err, ErrCycleBusy) {
		t.Fatalf("a held lease must return ErrCycleBusy before any stage runs, got %v", err)
	}
}

func TestRunMonthlySkipsWhenLeaseIsHeld(t *testing.T) {
	r := &Runner{lease: &heldLease{acquired: false}}
	_, err := r.RunMonthly(context.Background(), uuid.New())
	if !errors.Is(err, ErrCycleBusy) {
		t.Fatalf("a held lease must return ErrCycleBusy before any stage runs, got %v", err)
	}
}

func TestEncodeStagesRoundTripsKeys(t *testing.T) {
	raw := encodeStages(map[string]string{"signals": "ok", "planning": "failed: no ideas"})
	s := string(raw)
	for _, want := range []string{`"signals":"ok"`, `"planning":"failed: no ideas"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoded stages %s missing %s", s, want)
		}
	}
}
