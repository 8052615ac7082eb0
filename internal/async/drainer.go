package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/casesearch/internal/index"
)

// DrainFunc drains up to batchSize ledger marks.
type DrainFunc func(ctx context.Context, batchSize int) (*index.DrainReport, error)

// DrainerConfig configures the Drainer.
type DrainerConfig struct {
	// Interval between passes.
	Interval time.Duration

	// BatchSize is the number of marks per drain call.
	BatchSize int

	// Lock, when set, keeps other processes from draining concurrently.
	Lock *DrainLock
}

// Drainer drains the ledger on a timer in a background goroutine. A pass
// keeps draining while full batches come back, so a backlog is cleared
// without waiting for further ticks.
type Drainer struct {
	config   DrainerConfig
	drain    DrainFunc
	progress *DrainProgress
	logger   *slog.Logger

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      sync.Mutex
	running bool
}

// NewDrainer creates a drainer around drain.
func NewDrainer(drain DrainFunc, cfg DrainerConfig) *Drainer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Drainer{
		config:    cfg,
		drain:     drain,
		progress:  NewDrainProgress(),
		logger:    slog.Default(),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Progress returns the progress tracker for this drainer.
func (d *Drainer) Progress() *DrainProgress {
	return d.progress
}

// IsRunning returns true if the drainer loop is running.
func (d *Drainer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start begins draining in a background goroutine. Non-blocking.
func (d *Drainer) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.progress.SetStatus(StatusIdle)
	go d.run(ctx)
}

// Trigger requests a pass without waiting for the next tick.
func (d *Drainer) Trigger() {
	select {
	case d.triggerCh <- struct{}{}:
	default:
	}
}

func (d *Drainer) run(ctx context.Context) {
	defer close(d.doneCh)
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.progress.SetStatus(StatusStopped)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.triggerCh:
		}
		d.RunOnce(ctx)
	}
}

// RunOnce performs one pass: drains full batches until the ledger is empty,
// a batch comes back short, or an error occurs. A pass is skipped when
// another process holds the lock.
func (d *Drainer) RunOnce(ctx context.Context) {
	if lock := d.config.Lock; lock != nil {
		acquired, err := lock.TryLock()
		if err != nil {
			d.logger.Warn("drain_lock_failed", slog.String("error", err.Error()))
			return
		}
		if !acquired {
			d.logger.Debug("drain_skipped", slog.String("reason", "lock held by another process"))
			return
		}
		defer func() { _ = lock.Unlock() }()
	}

	d.progress.SetStatus(StatusDraining)
	for {
		report, err := d.drain(ctx, d.config.BatchSize)
		if err != nil {
			d.progress.SetError(err.Error())
			d.logger.Warn("drain_failed", slog.String("error", err.Error()))
			return
		}
		d.progress.Record(report.Attempted, report.Upserted, report.Removed, len(report.Failed))

		// Failed marks stay pending; stop so they are not retried in a tight loop.
		if report.Attempted < d.config.BatchSize || len(report.Failed) > 0 || ctx.Err() != nil {
			return
		}
		d.progress.SetStatus(StatusDraining)
	}
}

// Stop signals the drainer to stop and waits for it to finish.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopCh)
	<-d.doneCh
}
