package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"events_bot/internal/storage"
)

type mockPoster struct {
	mu      sync.Mutex
	calls   []int64
	called  chan int64
	release chan struct{}
	err     error
}

func newMockPoster() *mockPoster {
	return &mockPoster{called: make(chan int64, 16)}
}

func (m *mockPoster) Post(_ context.Context, serverID int64) error {
	m.mu.Lock()
	m.calls = append(m.calls, serverID)
	m.mu.Unlock()
	m.called <- serverID
	if m.release != nil {
		<-m.release
	}
	return m.err
}

func (m *mockPoster) getCalls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRegistry(t *testing.T, store storage.Storage, poster Poster) *Registry {
	t.Helper()
	r, err := NewRegistry(store, poster, Options{Location: time.UTC}, discardLogger())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func waitCall(t *testing.T, p *mockPoster) int64 {
	t.Helper()
	select {
	case id := <-p.called:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline was not invoked")
		return 0
	}
}

func TestNewRegistryInvalidSpec(t *testing.T) {
	_, err := NewRegistry(newTestStore(t), newMockPoster(), Options{Spec: "every sunday", Location: time.UTC}, discardLogger())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEnable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := newTestRegistry(t, store, newMockPoster())

	if err := r.Enable(ctx, 1); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := r.Enable(ctx, 1); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("second enable error = %v, want %v", err, ErrAlreadyEnabled)
	}

	if diff := cmp.Diff(1, len(r.cron.Entries())); diff != "" {
		t.Errorf("cron entries mismatch (-want +got):\n%s", diff)
	}
	if !r.Enabled(1) {
		t.Error("expected server 1 to be enabled")
	}
	enabled, err := store.GetEnabled(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("expected enabled flag to be persisted")
	}
	ids, err := store.ListServerIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1}, ids); diff != "" {
		t.Errorf("persisted servers mismatch (-want +got):\n%s", diff)
	}
}

func TestDisable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := newTestRegistry(t, store, newMockPoster())

	if err := r.Disable(ctx, 1); !errors.Is(err, ErrAlreadyDisabled) {
		t.Fatalf("disable of unknown server error = %v, want %v", err, ErrAlreadyDisabled)
	}

	if err := r.Enable(ctx, 1); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := r.Disable(ctx, 1); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := r.Disable(ctx, 1); !errors.Is(err, ErrAlreadyDisabled) {
		t.Fatalf("second disable error = %v, want %v", err, ErrAlreadyDisabled)
	}

	if diff := cmp.Diff(0, len(r.cron.Entries())); diff != "" {
		t.Errorf("cron entries mismatch (-want +got):\n%s", diff)
	}
	enabled, err := store.GetEnabled(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if enabled {
		t.Error("expected enabled flag to be cleared")
	}

	// Re-enabling after a disable is allowed.
	if err := r.Enable(ctx, 1); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
}

// failingStore rejects writes of the enabled flag once failDisable is set.
type failingStore struct {
	storage.Storage
	failDisable bool
}

func (f *failingStore) SetEnabled(ctx context.Context, serverID int64, enabled bool) error {
	if f.failDisable && !enabled {
		return errors.New("disk full")
	}
	return f.Storage.SetEnabled(ctx, serverID, enabled)
}

func TestDisableKeepsJobWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	store := &failingStore{Storage: base}
	r := newTestRegistry(t, store, newMockPoster())

	if err := r.Enable(ctx, 1); err != nil {
		t.Fatalf("enable: %v", err)
	}

	store.failDisable = true
	if err := r.Disable(ctx, 1); err == nil {
		t.Fatal("expected disable to fail")
	}

	if !r.Enabled(1) {
		t.Error("job removed although the flag is still persisted")
	}
	if diff := cmp.Diff(1, len(r.cron.Entries())); diff != "" {
		t.Errorf("cron entries mismatch (-want +got):\n%s", diff)
	}
	enabled, err := base.GetEnabled(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("expected enabled flag to remain set")
	}

	// Once the store recovers, disabling succeeds and survives a restart.
	store.failDisable = false
	if err := r.Disable(ctx, 1); err != nil {
		t.Fatalf("disable: %v", err)
	}
	restarted := newTestRegistry(t, base, newMockPoster())
	n, err := restarted.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if diff := cmp.Diff(0, n); diff != "" {
		t.Errorf("reconciled jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := newTestRegistry(t, store, newMockPoster())
	for _, id := range []int64{1, 2, 3} {
		if err := first.Enable(ctx, id); err != nil {
			t.Fatalf("enable %d: %v", id, err)
		}
	}
	if err := first.Disable(ctx, 2); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := store.SetChannel(ctx, 4, 40); err != nil {
		t.Fatal(err)
	}

	// A fresh registry on the same store stands in for a process restart.
	restarted := newTestRegistry(t, store, newMockPoster())
	n, err := restarted.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if diff := cmp.Diff(2, n); diff != "" {
		t.Errorf("restored count mismatch (-want +got):\n%s", diff)
	}

	got := map[int64]bool{}
	for _, id := range []int64{1, 2, 3, 4} {
		got[id] = restarted.Enabled(id)
	}
	want := map[int64]bool{1: true, 2: false, 3: true, 4: false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("enabled servers mismatch (-want +got):\n%s", diff)
	}

	// Reconciling twice does not create duplicate jobs.
	if _, err := restarted.Reconcile(ctx); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if diff := cmp.Diff(2, len(restarted.cron.Entries())); diff != "" {
		t.Errorf("cron entries mismatch (-want +got):\n%s", diff)
	}

	if err := restarted.Enable(ctx, 1); !errors.Is(err, ErrAlreadyEnabled) {
		t.Errorf("enable after reconcile error = %v, want %v", err, ErrAlreadyEnabled)
	}
}

func TestRunDispatchesTriggers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poster := newMockPoster()
	r := newTestRegistry(t, newTestStore(t), poster)
	if err := r.Enable(ctx, 7); err != nil {
		t.Fatalf("enable: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.trigger(7)
	if diff := cmp.Diff(int64(7), waitCall(t, poster)); diff != "" {
		t.Errorf("server id mismatch (-want +got):\n%s", diff)
	}

	if next, ok := r.Next(7); ok && next.Weekday() != time.Sunday {
		t.Errorf("next run on %v, want Sunday", next.Weekday())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRunSkipsOverlappingRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poster := newMockPoster()
	poster.release = make(chan struct{})
	r := newTestRegistry(t, newTestStore(t), poster)

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.trigger(1)
	waitCall(t, poster)

	// Server 1 is still delivering: a manual run and a second trigger are refused,
	// another server is not affected.
	if err := r.RunNow(ctx, 1); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunNow error = %v, want %v", err, ErrRunInProgress)
	}
	r.trigger(1)
	r.trigger(2)
	if diff := cmp.Diff(int64(2), waitCall(t, poster)); diff != "" {
		t.Errorf("server id mismatch (-want +got):\n%s", diff)
	}

	close(poster.release)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	if diff := cmp.Diff([]int64{1, 2}, poster.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDisableDoesNotInterruptRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poster := newMockPoster()
	poster.release = make(chan struct{})
	r := newTestRegistry(t, newTestStore(t), poster)
	if err := r.Enable(ctx, 5); err != nil {
		t.Fatalf("enable: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.trigger(5)
	waitCall(t, poster)

	if err := r.Disable(ctx, 5); err != nil {
		t.Fatalf("disable: %v", err)
	}
	close(poster.release)

	// The in-flight run completes and frees the slot.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := r.RunNow(ctx, 5)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrRunInProgress) || time.Now().After(deadline) {
			t.Fatalf("RunNow: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestRunNowIgnoresEnabledState(t *testing.T) {
	poster := newMockPoster()
	poster.err = ErrNotConfigured
	r := newTestRegistry(t, newTestStore(t), poster)

	err := r.RunNow(context.Background(), 9)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("RunNow error = %v, want %v", err, ErrNotConfigured)
	}
	if diff := cmp.Diff([]int64{9}, poster.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}
