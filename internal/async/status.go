// Package async runs the Pending-Reindex Ledger drain in the background and
// tracks its progress.
package async

import (
	"sync"
	"time"
)

// DrainStatus represents the state of the background drainer.
type DrainStatus string

const (
	// StatusIdle indicates the drainer is waiting for the next pass.
	StatusIdle DrainStatus = "idle"
	// StatusDraining indicates a pass is in progress.
	StatusDraining DrainStatus = "draining"
	// StatusError indicates the last pass failed.
	StatusError DrainStatus = "error"
	// StatusStopped indicates the drainer is not running.
	StatusStopped DrainStatus = "stopped"
)

// DrainProgressSnapshot is an immutable snapshot of drain progress.
type DrainProgressSnapshot struct {
	Status       string    `json:"status"`
	Passes       int       `json:"passes"`
	Attempted    int       `json:"attempted"`
	Upserted     int       `json:"upserted"`
	Removed      int       `json:"removed"`
	Failed       int       `json:"failed"`
	LastPass     time.Time `json:"last_pass,omitzero"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// DrainProgress provides thread-safe tracking of drain progress.
type DrainProgress struct {
	mu sync.RWMutex

	status       DrainStatus
	passes       int
	attempted    int
	upserted     int
	removed      int
	failed       int
	lastPass     time.Time
	errorMessage string
}

// NewDrainProgress creates a new progress tracker in the stopped state.
func NewDrainProgress() *DrainProgress {
	return &DrainProgress{status: StatusStopped}
}

// SetStatus updates the drainer state.
func (p *DrainProgress) SetStatus(status DrainStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = status
}

// Record adds the counters of one finished pass and clears any error.
func (p *DrainProgress) Record(attempted, upserted, removed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.passes++
	p.attempted += attempted
	p.upserted += upserted
	p.removed += removed
	p.failed += failed
	p.lastPass = time.Now()
	p.status = StatusIdle
	p.errorMessage = ""
}

// SetError marks the last pass as failed with an error message.
func (p *DrainProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.passes++
	p.lastPass = time.Now()
	p.status = StatusError
	p.errorMessage = message
}

// Snapshot returns an immutable copy of the current progress state.
func (p *DrainProgress) Snapshot() DrainProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return DrainProgressSnapshot{
		Status:       string(p.status),
		Passes:       p.passes,
		Attempted:    p.attempted,
		Upserted:     p.upserted,
		Removed:      p.removed,
		Failed:       p.failed,
		LastPass:     p.lastPass,
		ErrorMessage: p.errorMessage,
	}
}
