// Package monitor runs the background profile-update loop.
//
// A Monitor owns the watermark (the timestamp of the last processed
// interaction) and drives the updater exactly once per newly observed
// record. The watermark lives only in memory: a fresh process starts
// from "look at the single latest record", which is the intended
// at-most-once, liveness-first design.
package monitor

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/recall/pkg/models"
)

// Source yields the most recent interaction after a watermark.
// Implemented by logdb.Reader.
type Source interface {
	LatestSince(ctx context.Context, watermark string) (*models.InteractionRecord, error)
}

// ApplyFunc attempts a profile update for one record.
type ApplyFunc func(ctx context.Context, rec *models.InteractionRecord) (bool, error)

// Options configures the polling loop. Interval and StopCheckInterval
// are policy constants, not structural requirements.
type Options struct {
	Interval          time.Duration
	StopCheckInterval time.Duration

	// LocateWakeTarget resolves the log database path for the
	// fsnotify wake hint. Nil disables the hint; polling alone
	// still observes every new record within one interval.
	LocateWakeTarget func(ctx context.Context) (string, error)

	// StopTimeout bounds how long Stop waits for the worker.
	StopTimeout time.Duration
}

// Monitor is the background profile-update loop. One per process.
type Monitor struct {
	opts   Options
	source Source
	apply  ApplyFunc
	logger zerolog.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	group     *errgroup.Group
	watermark string
}

// New creates a stopped monitor.
func New(opts Options, source Source, apply ApplyFunc, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.StopCheckInterval <= 0 {
		opts.StopCheckInterval = 100 * time.Millisecond
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = time.Second
	}
	return &Monitor{
		opts:   opts,
		source: source,
		apply:  apply,
		logger: logger.With().Str("component", "monitor").Str("monitor_id", uuid.NewString()).Logger(),
	}
}

// Start spawns the background worker. Calling Start on a running
// monitor is a no-op. The owner is responsible for calling Stop on
// process shutdown.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	wake := make(chan struct{}, 1)

	g, gctx := errgroup.WithContext(ctx)
	m.group = g

	g.Go(func() error {
		m.pollLoop(gctx, wake)
		return nil
	})
	if m.opts.LocateWakeTarget != nil {
		g.Go(func() error {
			m.watchLoop(gctx, wake)
			return nil
		})
	}

	m.logger.Debug().Dur("interval", m.opts.Interval).Msg("Monitor started")
}

// Stop signals the worker to exit and waits up to StopTimeout for it.
// The monitor counts as stopped either way; Stop before Start or a
// second Stop is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	group := m.group
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Debug().Msg("Monitor stopped")
	case <-time.After(m.opts.StopTimeout):
		m.logger.Debug().Msg("Monitor stop timed out, abandoning worker")
	}
}

// Running reports whether the worker is live.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Watermark returns the timestamp of the last processed record, or ""
// when no record has been observed this process.
func (m *Monitor) Watermark() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

func (m *Monitor) setWatermark(ts string) {
	m.mu.Lock()
	m.watermark = ts
	m.mu.Unlock()
}

func (m *Monitor) pollLoop(ctx context.Context, wake <-chan struct{}) {
	for {
		m.pollOnce(ctx)
		if !m.sleep(ctx, wake) {
			return
		}
	}
}

// pollOnce processes at most one new record. The watermark advances
// before the update attempt: a failed or panicking update never causes
// the record to be retried, trading completeness for liveness.
func (m *Monitor) pollOnce(ctx context.Context) {
	defer func() {
		// The loop must outlive any single bad iteration.
		if r := recover(); r != nil {
			m.logger.Warn().Interface("panic", r).Msg("Update iteration panicked")
		}
	}()

	rec, err := m.source.LatestSince(ctx, m.Watermark())
	if err != nil {
		m.logger.Debug().Err(err).Msg("Log poll failed")
		return
	}
	if rec == nil {
		return
	}

	m.setWatermark(rec.DatetimeUTC)

	if strings.TrimSpace(rec.Prompt) == "" {
		return
	}

	updated, err := m.apply(ctx, rec)
	if err != nil {
		m.logger.Debug().Err(err).Str("record_id", rec.ID).Msg("Profile update failed")
		return
	}
	if updated {
		m.logger.Debug().Str("record_id", rec.ID).Msg("Profile update applied")
	}
}

// sleep waits one interval in short slices so a stop signal is honored
// within StopCheckInterval. A wake hint cuts the wait short. Returns
// false when the monitor should exit.
func (m *Monitor) sleep(ctx context.Context, wake <-chan struct{}) bool {
	deadline := time.Now().Add(m.opts.Interval)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := m.opts.StopCheckInterval
		if slice > remaining {
			slice = remaining
		}
		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-wake:
			timer.Stop()
			return true
		case <-timer.C:
		}
	}
}

// watchLoop nudges the poll loop when the log database changes so new
// interactions are picked up before the next tick. Purely advisory:
// any failure here degrades to plain polling.
func (m *Monitor) watchLoop(ctx context.Context, wake chan<- struct{}) {
	target, err := m.opts.LocateWakeTarget(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Wake target unavailable, relying on polling")
		return
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Debug().Err(err).Msg("Watcher unavailable, relying on polling")
		return
	}
	defer fsw.Close()

	// Watch the parent directory: SQLite writes land in the db file,
	// its -wal, and its -journal siblings.
	dir := filepath.Dir(target)
	if err := fsw.Add(dir); err != nil {
		m.logger.Debug().Err(err).Str("dir", dir).Msg("Watch failed, relying on polling")
		return
	}

	base := filepath.Base(target)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			m.logger.Debug().Err(err).Msg("Watcher error")
		}
	}
}
