package async

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/casesearch/internal/index"
)

// scriptedDrain returns one canned report per call.
type scriptedDrain struct {
	mu      sync.Mutex
	reports []*index.DrainReport
	err     error
	calls   int
}

func (s *scriptedDrain) drain(_ context.Context, _ int) (*index.DrainReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.reports) == 0 {
		return &index.DrainReport{}, nil
	}
	r := s.reports[0]
	s.reports = s.reports[1:]
	return r, nil
}

func (s *scriptedDrain) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestDrainer_RunOnce_DrainsFullBatchesUntilShort(t *testing.T) {
	// Given: two full batches followed by a short one
	s := &scriptedDrain{reports: []*index.DrainReport{
		{Attempted: 2, Upserted: 2},
		{Attempted: 2, Upserted: 1, Removed: 1},
		{Attempted: 1, Upserted: 1},
	}}
	d := NewDrainer(s.drain, DrainerConfig{BatchSize: 2})

	// When: running one pass
	d.RunOnce(context.Background())

	// Then: all three batches were drained and counted
	assert.Equal(t, 3, s.callCount())
	snap := d.Progress().Snapshot()
	assert.Equal(t, 5, snap.Attempted)
	assert.Equal(t, 4, snap.Upserted)
	assert.Equal(t, 1, snap.Removed)
	assert.Equal(t, string(StatusIdle), snap.Status)
}

func TestDrainer_RunOnce_StopsOnFailures(t *testing.T) {
	s := &scriptedDrain{reports: []*index.DrainReport{
		{Attempted: 2, Upserted: 1, Failed: []index.DrainFailure{{ID: "c1", Cause: errors.New("down")}}},
		{Attempted: 2, Upserted: 2},
	}}
	d := NewDrainer(s.drain, DrainerConfig{BatchSize: 2})

	d.RunOnce(context.Background())

	assert.Equal(t, 1, s.callCount())
	assert.Equal(t, 1, d.Progress().Snapshot().Failed)
}

func TestDrainer_RunOnce_RecordsError(t *testing.T) {
	s := &scriptedDrain{err: errors.New("index unavailable")}
	d := NewDrainer(s.drain, DrainerConfig{})

	d.RunOnce(context.Background())

	snap := d.Progress().Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "index unavailable", snap.ErrorMessage)
}

func TestDrainer_RunOnce_SkipsWhenLockHeldElsewhere(t *testing.T) {
	// Given: another holder of the drain lock
	path := filepath.Join(t.TempDir(), "drain.lock")
	other := NewDrainLock(path)
	acquired, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = other.Unlock() }()

	s := &scriptedDrain{}
	d := NewDrainer(s.drain, DrainerConfig{Lock: NewDrainLock(path)})

	// When: running a pass
	d.RunOnce(context.Background())

	// Then: nothing was drained
	assert.Zero(t, s.callCount())
}

func TestDrainer_StartTriggerStop(t *testing.T) {
	// Given: a drainer with a long interval
	s := &scriptedDrain{}
	d := NewDrainer(s.drain, DrainerConfig{Interval: time.Hour})

	// When: started and triggered
	d.Start(context.Background())
	require.True(t, d.IsRunning())
	d.Trigger()

	// Then: a pass runs without waiting for the tick
	require.Eventually(t, func() bool { return s.callCount() > 0 }, 2*time.Second, 10*time.Millisecond)

	// And: Stop ends the loop
	d.Stop()
	assert.False(t, d.IsRunning())
	assert.Equal(t, string(StatusStopped), d.Progress().Snapshot().Status)
}

func TestDrainLock_UnlockIsIdempotent(t *testing.T) {
	l := NewDrainLock(filepath.Join(t.TempDir(), "nested", "drain.lock"))

	acquired, err := l.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	assert.True(t, l.IsLocked())

	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
	assert.False(t, l.IsLocked())
}
