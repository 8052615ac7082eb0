package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// DefaultDebounceWindow coalesces bursts of editor writes into one reload.
const DefaultDebounceWindow = 300 * time.Millisecond

// ChangeHandler receives the entity changes found by one reload.
type ChangeHandler func(ctx context.Context, changes []registry.Change)

// Watcher reloads a Store when its fixture directory changes and reports the
// entities that were added, modified or deleted.
type Watcher struct {
	dir     string
	store   *Store
	window  time.Duration
	handler ChangeHandler
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the fixture directory backing store.
func NewWatcher(dir string, store *Store, handler ChangeHandler) *Watcher {
	return &Watcher{
		dir:     dir,
		store:   store,
		window:  DefaultDebounceWindow,
		handler: handler,
		logger:  slog.Default(),
	}
}

// SetDebounceWindow overrides the debounce window.
func (w *Watcher) SetDebounceWindow(d time.Duration) {
	w.window = d
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch fixture directory %s: %w", w.dir, err)
	}

	w.logger.Info("fixture_watch_started", slog.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if isFixtureEvent(event) {
				w.schedule(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fixture_watch_error", slog.String("error", err.Error()))
		}
	}
}

func isFixtureEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == event.Op {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, func() { w.Sync(ctx) })
}

// Sync reloads the fixture directory once and reports the differences.
func (w *Watcher) Sync(ctx context.Context) []registry.Change {
	before := w.store.fingerprints()
	if err := w.store.Reload(w.dir); err != nil {
		w.logger.Warn("fixture_reload_failed", slog.String("dir", w.dir), slog.String("error", err.Error()))
		return nil
	}
	changes := diff(before, w.store.fingerprints())

	w.logger.Info("fixture_reloaded",
		slog.String("dir", w.dir),
		slog.Int("changes", len(changes)))

	if len(changes) > 0 && w.handler != nil {
		w.handler(ctx, changes)
	}
	return changes
}

type entityKey struct {
	kind projection.Kind
	id   string
}

// fingerprints returns a content digest per entity. Roles are folded into their case.
func (s *Store) fingerprints() map[entityKey]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[entityKey]string, len(s.cases)+len(s.tasks)+len(s.documents))
	for id, c := range s.cases {
		out[entityKey{projection.KindCase, id}] = digest(c, s.roles[id])
	}
	for id, t := range s.tasks {
		out[entityKey{projection.KindTask, id}] = digest(t)
	}
	for id, d := range s.documents {
		out[entityKey{projection.KindDocument, id}] = digest(d)
	}
	return out
}

func digest(values ...any) string {
	data, err := yaml.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func diff(before, after map[entityKey]string) []registry.Change {
	var changes []registry.Change
	for k, fp := range after {
		if old, ok := before[k]; !ok || old != fp {
			changes = append(changes, registry.Change{Kind: k.kind, ID: k.id})
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			changes = append(changes, registry.Change{Kind: k.kind, ID: k.id, Deleted: true})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Kind != changes[j].Kind {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].ID < changes[j].ID
	})
	return changes
}
