package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"go.uber.org/zap"
)

// stubFetcher serves messages newer than the requested watermark.
type stubFetcher struct {
	mu    sync.Mutex
	msgs  []store.Message
	calls int
}

func (s *stubFetcher) FetchMessagesSince(ctx context.Context, chatID string, since time.Time) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []store.Message
	for _, m := range s.msgs {
		if m.ChatID == chatID && m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubFetcher) add(m store.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func collectIngest() (func(store.Message), func() []store.Message) {
	var mu sync.Mutex
	var got []store.Message
	ingest := func(m store.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}
	snapshot := func() []store.Message {
		mu.Lock()
		defer mu.Unlock()
		out := make([]store.Message, len(got))
		copy(out, got)
		return out
	}
	return ingest, snapshot
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPollerFetchesAfterGrace(t *testing.T) {
	f := &stubFetcher{}
	base := time.Now()
	f.add(store.Message{ID: "m1", ChatID: "c1", CreatedAt: base.Add(time.Second)})

	p := NewPoller(f, 20*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	ingest, got := collectIngest()
	p.Arm(context.Background(), "c1", base, ingest)
	defer p.Disarm()

	waitUntil(t, 2*time.Second, func() bool { return len(got()) == 1 })
	if msgs := got(); msgs[0].ID != "m1" {
		t.Errorf("got %+v", msgs)
	}
}

func TestPollerAdvancesWatermark(t *testing.T) {
	f := &stubFetcher{}
	base := time.Now()
	f.add(store.Message{ID: "m1", ChatID: "c1", CreatedAt: base.Add(time.Second)})

	p := NewPoller(f, time.Millisecond, 10*time.Millisecond, zap.NewNop())
	ingest, got := collectIngest()
	p.Arm(context.Background(), "c1", base, ingest)
	defer p.Disarm()

	waitUntil(t, 2*time.Second, func() bool { return len(got()) >= 1 })
	// Several more ticks must not re-deliver m1.
	waitUntil(t, time.Second, func() bool { return f.callCount() >= 3 })
	if n := len(got()); n != 1 {
		t.Errorf("m1 delivered %d times, want 1", n)
	}

	f.add(store.Message{ID: "m2", ChatID: "c1", CreatedAt: base.Add(2 * time.Second)})
	waitUntil(t, 2*time.Second, func() bool { return len(got()) == 2 })
}

func TestDisarmStopsPolling(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, time.Millisecond, 10*time.Millisecond, zap.NewNop())
	ingest, _ := collectIngest()
	p.Arm(context.Background(), "c1", time.Now(), ingest)
	waitUntil(t, time.Second, func() bool { return f.callCount() >= 1 })

	p.Disarm()
	if p.Armed() {
		t.Error("Armed() = true after Disarm")
	}
	calls := f.callCount()
	time.Sleep(50 * time.Millisecond)
	if f.callCount() > calls+1 {
		t.Error("poller kept fetching after Disarm")
	}
	// Disarming again is a no-op.
	p.Disarm()
}

func TestArmReplacesPreviousChat(t *testing.T) {
	f := &stubFetcher{}
	base := time.Now()
	f.add(store.Message{ID: "old", ChatID: "c1", CreatedAt: base.Add(time.Second)})
	f.add(store.Message{ID: "new", ChatID: "c2", CreatedAt: base.Add(time.Second)})

	p := NewPoller(f, time.Millisecond, 10*time.Millisecond, zap.NewNop())
	ingest, got := collectIngest()
	p.Arm(context.Background(), "c1", base, ingest)
	p.Arm(context.Background(), "c2", base, ingest)
	defer p.Disarm()

	waitUntil(t, 2*time.Second, func() bool { return len(got()) >= 1 })
	for _, m := range got() {
		if m.ChatID == "c1" {
			// The first chat may have been fetched once before the
			// switch; after it, only c2 may appear.
			continue
		}
		if m.ChatID != "c2" {
			t.Errorf("unexpected chat %s", m.ChatID)
		}
	}
}

func TestPollerGraceDelays(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, 150*time.Millisecond, 10*time.Millisecond, zap.NewNop())
	ingest, _ := collectIngest()
	p.Arm(context.Background(), "c1", time.Now(), ingest)
	defer p.Disarm()

	time.Sleep(50 * time.Millisecond)
	if f.callCount() != 0 {
		t.Error("poller fetched during grace window")
	}
}
