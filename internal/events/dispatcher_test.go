package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

type call struct {
	op        string
	kind      projection.Kind
	id        string
	withTasks bool
	immediate bool
}

type recordingTarget struct {
	calls []call
	fail  map[string]error
}

func (r *recordingTarget) Upsert(_ context.Context, kind projection.Kind, id string, immediate bool) error {
	r.calls = append(r.calls, call{op: "upsert", kind: kind, id: id, immediate: immediate})
	return r.fail[id]
}

func (r *recordingTarget) UpsertCase(_ context.Context, id string, withTasks, immediate bool) error {
	r.calls = append(r.calls, call{op: "upsert_case", kind: projection.KindCase, id: id, withTasks: withTasks, immediate: immediate})
	return r.fail[id]
}

func (r *recordingTarget) Remove(_ context.Context, kind projection.Kind, id string) error {
	r.calls = append(r.calls, call{op: "remove", kind: kind, id: id})
	return r.fail[id]
}

func TestDispatcher_MapsChangesToPipelineOperations(t *testing.T) {
	// Given: a deferred dispatcher that also refreshes case tasks
	target := &recordingTarget{}
	d := NewDispatcher(target, Config{CaseTasks: true})

	// When: dispatching one change per shape
	res := d.Dispatch(context.Background(), []registry.Change{
		{Kind: projection.KindCase, ID: "c1"},
		{Kind: projection.KindTask, ID: "t1"},
		{Kind: projection.KindDocument, ID: "d1"},
		{Kind: projection.KindTask, ID: "t2", Deleted: true},
	})

	// Then: each change went to the matching operation in order
	assert.Equal(t, Result{Handled: 4}, res)
	assert.Equal(t, []call{
		{op: "upsert_case", kind: projection.KindCase, id: "c1", withTasks: true},
		{op: "upsert", kind: projection.KindTask, id: "t1"},
		{op: "upsert", kind: projection.KindDocument, id: "d1"},
		{op: "remove", kind: projection.KindTask, id: "t2"},
	}, target.calls)
}

func TestDispatcher_ContinuesAfterFailure(t *testing.T) {
	target := &recordingTarget{fail: map[string]error{"t1": errors.New("registry down")}}
	d := NewDispatcher(target, Config{Immediate: true})

	res := d.Dispatch(context.Background(), []registry.Change{
		{Kind: projection.KindTask, ID: "t1"},
		{Kind: projection.KindTask, ID: "t2"},
	})

	assert.Equal(t, Result{Handled: 1, Failed: 1}, res)
	require.Len(t, target.calls, 2)
	assert.True(t, target.calls[1].immediate)
}

func TestDispatcher_Trigger(t *testing.T) {
	tests := []struct {
		name      string
		immediate bool
		fail      bool
		want      int
	}{
		{name: "deferred always triggers", immediate: false, want: 1},
		{name: "immediate success does not trigger", immediate: true, want: 0},
		{name: "immediate failure triggers", immediate: true, fail: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{}
			if tt.fail {
				target.fail = map[string]error{"d1": errors.New("boom")}
			}
			triggered := 0
			d := NewDispatcher(target, Config{Immediate: tt.immediate}, WithTrigger(func() { triggered++ }))

			d.Handle(context.Background(), []registry.Change{{Kind: projection.KindDocument, ID: "d1"}})

			assert.Equal(t, tt.want, triggered)
		})
	}
}

func TestDispatcher_EmptyBatchDoesNothing(t *testing.T) {
	target := &recordingTarget{}
	triggered := false
	d := NewDispatcher(target, Config{}, WithTrigger(func() { triggered = true }))

	res := d.Dispatch(context.Background(), nil)

	assert.Equal(t, Result{}, res)
	assert.False(t, triggered)
}

func TestDispatcher_CancelledContextCountsRemainingAsFailed(t *testing.T) {
	target := &recordingTarget{}
	d := NewDispatcher(target, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Dispatch(ctx, []registry.Change{
		{Kind: projection.KindCase, ID: "c1"},
		{Kind: projection.KindCase, ID: "c2"},
	})

	assert.Equal(t, Result{Failed: 2}, res)
	assert.Empty(t, target.calls)
}
