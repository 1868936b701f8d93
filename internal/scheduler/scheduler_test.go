package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"saludables/internal/model"
)

func TestNextAt(t *testing.T) {
	loc := time.FixedZone("PET", -5*3600)
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 10, 1, 30, 0, 0, loc), time.Date(2024, 1, 10, 2, 0, 0, 0, loc)},
		{time.Date(2024, 1, 10, 2, 0, 0, 0, loc), time.Date(2024, 1, 11, 2, 0, 0, 0, loc)},
		{time.Date(2024, 1, 31, 23, 0, 0, 0, loc), time.Date(2024, 2, 1, 2, 0, 0, 0, loc)},
		// UTC 06:30 即利马 01:30
		{time.Date(2024, 1, 10, 6, 30, 0, 0, time.UTC), time.Date(2024, 1, 10, 2, 0, 0, 0, loc)},
	}
	for _, c := range cases {
		if got := NextAt(c.now, loc, 2); !got.Equal(c.want) {
			t.Errorf("NextAt(%v) = %v, want %v", c.now, got, c.want)
		}
	}
}

func TestLoadZoneFallback(t *testing.T) {
	loc := LoadZone("Not/AZone")
	_, off := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	if off != -5*3600 {
		t.Fatalf("offset = %d", off)
	}
}

type recorder struct {
	mu   sync.Mutex
	seen []model.Category
	fail model.Category
}

func (r *recorder) ForceRefresh(ctx context.Context, c model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, c)
	if c == r.fail {
		return errors.New("boom")
	}
	return nil
}

func TestRunOnceContinuesAfterError(t *testing.T) {
	r := &recorder{fail: model.Beach}
	RunOnce(context.Background(), r.ForceRefresh)
	got := map[model.Category]bool{}
	for _, c := range r.seen {
		got[c] = true
	}
	if len(r.seen) != 2 || !got[model.Beach] || !got[model.Pool] {
		t.Fatalf("seen = %v", r.seen)
	}
}

func TestStartDailyStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{}
	StartDaily(ctx, r, 2, time.UTC)
	cancel()
	time.Sleep(10 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) != 0 {
		t.Fatalf("refreshed before schedule: %v", r.seen)
	}
}
