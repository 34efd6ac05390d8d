// Package janitor implements background cleanup of temp files abandoned by
// interrupted entry writes. It runs beside the HTTP server so the request path
// never pays for directory scans.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/haukened/quill/internal/metrics"
)

// Store is the minimal store operation the Janitor requires.
type Store interface {
	// SweepTemp removes temp files older than age and returns how many.
	SweepTemp(age time.Duration, now time.Time) (int, error)
}

// Recorder receives sweep counts. It is satisfied by *metrics.Manager.
type Recorder interface {
	Inc(name string, delta int64)
}

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a cycle begins
	Age      time.Duration // temp files younger than this are left alone
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
}

// Metrics accumulates in-memory counters for the loop itself.
type Metrics struct {
	mu                  sync.Mutex
	Cycles              uint64
	Swept               uint64
	Errors              uint64
	CycleLastDurationMS int64
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Cycles              uint64
	Swept               uint64
	Errors              uint64
	CycleLastDurationMS int64
}

func (m *Metrics) record(swept int, failed bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cycles++
	if swept > 0 {
		m.Swept += uint64(swept)
	}
	if failed {
		m.Errors++
	}
	m.CycleLastDurationMS = d.Milliseconds()
}

// Janitor encapsulates the background cleanup loop.
type Janitor struct {
	store   Store
	rec     Recorder
	cfg     Config
	metrics *Metrics

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor. rec may be nil.
func New(store Store, rec Recorder, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Age <= 0 {
		cfg.Age = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		store:   store,
		rec:     rec,
		cfg:     cfg,
		metrics: &Metrics{},
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	} // already started
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion. It is a no-op for
// a Janitor that was never started.
func (j *Janitor) Stop() {
	if j.ticker == nil {
		return
	}
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// MetricsSnapshot returns a copy of current metrics.
func (j *Janitor) MetricsSnapshot() MetricsView {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	return MetricsView{
		Cycles:              j.metrics.Cycles,
		Swept:               j.metrics.Swept,
		Errors:              j.metrics.Errors,
		CycleLastDurationMS: j.metrics.CycleLastDurationMS,
	}
}

// RunOnce performs a single sweep immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	return j.runCycle(ctx)
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		j.ticker.Stop()
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			_, _ = j.runCycle(ctx)
		}
	}
}

// runCycle performs one sweep.
func (j *Janitor) runCycle(_ context.Context) (int, error) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")
	n, err := j.store.SweepTemp(j.cfg.Age, start)
	if err != nil {
		log.Error("sweep", "error", err)
	}
	if n > 0 && j.rec != nil {
		j.rec.Inc(metrics.CounterTempFilesSwept, int64(n))
	}
	j.metrics.record(n, err != nil, time.Since(start))
	log.Debug("cycle complete", "swept", n, "ms", time.Since(start).Milliseconds())
	return n, err
}
