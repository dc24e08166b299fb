// Package scheduler keeps the weekly posting jobs of every server and runs
// the event pipeline when a job fires.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"events_bot/internal/storage"
)

// Errors returned by Registry.
var (
	ErrAlreadyEnabled  = errors.New("already enabled")
	ErrAlreadyDisabled = errors.New("already disabled")
	ErrRunInProgress   = errors.New("run already in progress")
)

// Defaults for Options.
const (
	DefaultSpec      = "0 17 * * 0"
	DefaultTimezone  = "America/Los_Angeles"
	defaultQueueSize = 64
)

// Poster runs the event pipeline for a single server.
type Poster interface {
	Post(ctx context.Context, serverID int64) error
}

// Options configure the weekly trigger.
type Options struct {
	// Spec is a standard five-field cron expression.
	Spec      string
	Location  *time.Location
	QueueSize int
}

// Registry owns the weekly job of every enabled server. A job firing only
// enqueues the server ID; Run consumes the queue and executes the pipeline.
type Registry struct {
	store  storage.Storage
	poster Poster
	log    *slog.Logger
	spec   string

	mu   sync.Mutex
	cron *cron.Cron
	jobs map[int64]cron.EntryID

	queue chan int64

	runMu    sync.Mutex
	inflight map[int64]bool
	wg       sync.WaitGroup
}

// NewRegistry creates a Registry. The cron spec is validated up front.
func NewRegistry(store storage.Storage, poster Poster, opts Options, log *slog.Logger) (*Registry, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		opts.Location = loc
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if _, err := cron.ParseStandard(opts.Spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Spec, err)
	}

	return &Registry{
		store:    store,
		poster:   poster,
		log:      log,
		spec:     opts.Spec,
		cron:     cron.New(cron.WithLocation(opts.Location)),
		jobs:     make(map[int64]cron.EntryID),
		queue:    make(chan int64, opts.QueueSize),
		inflight: make(map[int64]bool),
	}, nil
}

// Enable registers the weekly job for serverID and persists the enabled flag.
func (r *Registry) Enable(ctx context.Context, serverID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[serverID]; ok {
		return ErrAlreadyEnabled
	}
	if err := r.registerLocked(serverID); err != nil {
		return err
	}
	if err := r.store.SetEnabled(ctx, serverID, true); err != nil {
		r.cron.Remove(r.jobs[serverID])
		delete(r.jobs, serverID)
		return fmt.Errorf("persist enabled: %w", err)
	}

	r.log.Info("enabled weekly job", "server_id", serverID)
	return nil
}

// Disable cancels the weekly job for serverID and persists the flag. A run
// that is already delivering is left to finish.
func (r *Registry) Disable(ctx context.Context, serverID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.jobs[serverID]
	if !ok {
		return ErrAlreadyDisabled
	}
	// The job stays registered until the flag is durably cleared, so a
	// failed write cannot leave it re-enabled on the next Reconcile.
	if err := r.store.SetEnabled(ctx, serverID, false); err != nil {
		return fmt.Errorf("persist disabled: %w", err)
	}
	r.cron.Remove(id)
	delete(r.jobs, serverID)

	r.log.Info("disabled weekly job", "server_id", serverID)
	return nil
}

// Reconcile registers a job for every server whose persisted flag is set.
// It returns the number of jobs registered.
func (r *Registry) Reconcile(ctx context.Context) (int, error) {
	ids, err := r.store.ListServerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list servers: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		enabled, err := r.store.GetEnabled(ctx, id)
		if err != nil {
			return n, fmt.Errorf("load enabled flag for %d: %w", id, err)
		}
		if !enabled {
			continue
		}
		if _, ok := r.jobs[id]; ok {
			continue
		}
		if err := r.registerLocked(id); err != nil {
			return n, err
		}
		n++
	}

	r.log.Info("restored weekly jobs", "count", n)
	return n, nil
}

// Enabled reports whether a job is registered for serverID.
func (r *Registry) Enabled(serverID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[serverID]
	return ok
}

// Next returns the next time the job of serverID fires. It reports false when
// no job is registered or the scheduler is not running yet.
func (r *Registry) Next(serverID int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.jobs[serverID]
	if !ok {
		return time.Time{}, false
	}
	next := r.cron.Entry(id).Next
	return next, !next.IsZero()
}

// RunNow runs the pipeline for serverID in the calling goroutine, regardless
// of whether its weekly job is enabled.
func (r *Registry) RunNow(ctx context.Context, serverID int64) error {
	if !r.acquire(serverID) {
		return ErrRunInProgress
	}
	defer r.release(serverID)
	return r.poster.Post(ctx, serverID)
}

// Run starts the cron trigger and executes queued runs until ctx is
// cancelled. Each run executes on its own goroutine so a slow delivery for
// one server does not hold up others. Run waits for in-flight runs before
// returning.
func (r *Registry) Run(ctx context.Context) {
	r.cron.Start()
	defer func() {
		<-r.cron.Stop().Done()
		r.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.dispatch(ctx, id)
		}
	}
}

func (r *Registry) dispatch(ctx context.Context, serverID int64) {
	if !r.acquire(serverID) {
		r.log.Warn("skip trigger, previous run still in progress", "server_id", serverID)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(serverID)

		r.log.Info("running weekly job", "server_id", serverID)
		if err := r.poster.Post(ctx, serverID); err != nil {
			r.log.Error("weekly job failed", "server_id", serverID, "error", err)
		}
	}()
}

// trigger is the cron callback; it never blocks the cron goroutine.
func (r *Registry) trigger(serverID int64) {
	select {
	case r.queue <- serverID:
	default:
		r.log.Warn("job queue full, dropping trigger", "server_id", serverID)
	}
}

func (r *Registry) registerLocked(serverID int64) error {
	id, err := r.cron.AddFunc(r.spec, func() { r.trigger(serverID) })
	if err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	r.jobs[serverID] = id
	return nil
}

func (r *Registry) acquire(serverID int64) bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.inflight[serverID] {
		return false
	}
	r.inflight[serverID] = true
	return true
}

func (r *Registry) release(serverID int64) {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	delete(r.inflight, serverID)
}
