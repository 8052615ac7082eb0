// Package fixture provides a registry backed by YAML files.
//
// It serves the CLI when no remote registry is configured and acts as the
// in-memory registry in tests. Entities without a uuid get a stable name-based
// uuid derived from their identification.
package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// idNamespace seeds name-based uuids for fixture entities without one.
var idNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// File is the on-disk layout of one fixture file.
type File struct {
	CaseTypes []registry.CaseType `yaml:"caseTypes"`
	Statuses  []registry.Status   `yaml:"statuses"`
	Cases     []registry.Case     `yaml:"cases"`
	Roles     []registry.Role     `yaml:"roles"`
	Tasks     []registry.Task     `yaml:"tasks"`
	Documents []registry.Document `yaml:"documents"`
}

// Store is an in-memory registry, optionally loaded from fixture files.
type Store struct {
	mu        sync.RWMutex
	caseTypes map[string]*registry.CaseType
	statuses  map[string]*registry.Status
	cases     map[string]*registry.Case
	roles     map[string][]registry.Role
	tasks     map[string]*registry.Task
	documents map[string]*registry.Document

	// unavailable simulates a registry outage when set.
	unavailable error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		caseTypes: make(map[string]*registry.CaseType),
		statuses:  make(map[string]*registry.Status),
		cases:     make(map[string]*registry.Case),
		roles:     make(map[string][]registry.Role),
		tasks:     make(map[string]*registry.Task),
		documents: make(map[string]*registry.Document),
	}
}

// Load reads every *.yaml and *.yml file in dir into a new store.
func Load(dir string) (*Store, error) {
	s := NewStore()
	if err := s.Reload(dir); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the store contents with the fixture files in dir.
func (s *Store) Reload(dir string) error {
	files, err := fixtureFiles(dir)
	if err != nil {
		return err
	}

	fresh := NewStore()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read fixture %s: %w", path, err)
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return cserrors.ConfigError(fmt.Sprintf("invalid fixture %s", path), err)
		}
		fresh.Add(f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.caseTypes = fresh.caseTypes
	s.statuses = fresh.statuses
	s.cases = fresh.cases
	s.roles = fresh.roles
	s.tasks = fresh.tasks
	s.documents = fresh.documents
	return nil
}

func fixtureFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read fixture directory %s", dir), err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// stableID returns id, or a name-based uuid for name when id is empty.
func stableID(id, name string) string {
	if id != "" {
		return id
	}
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Add merges the contents of f into the store.
func (s *Store) Add(f File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range f.CaseTypes {
		ct := f.CaseTypes[i]
		ct.UUID = stableID(ct.UUID, "casetype:"+ct.Identification)
		s.caseTypes[ct.UUID] = &ct
	}
	for i := range f.Statuses {
		st := f.Statuses[i]
		st.UUID = stableID(st.UUID, "status:"+st.Description)
		s.statuses[st.UUID] = &st
	}
	for i := range f.Cases {
		c := f.Cases[i]
		c.UUID = stableID(c.UUID, "case:"+c.Identification)
		s.cases[c.UUID] = &c
	}
	for _, r := range f.Roles {
		s.roles[r.CaseUUID] = append(s.roles[r.CaseUUID], r)
	}
	for i := range f.Tasks {
		t := f.Tasks[i]
		t.ID = stableID(t.ID, "task:"+t.CaseUUID+":"+t.Name)
		s.tasks[t.ID] = &t
	}
	for i := range f.Documents {
		d := f.Documents[i]
		d.UUID = stableID(d.UUID, "document:"+d.Identification)
		s.documents[d.UUID] = &d
	}
}

// PutCase inserts or replaces a case.
func (s *Store) PutCase(c registry.Case) {
	s.Add(File{Cases: []registry.Case{c}})
}

// PutTask inserts or replaces a task.
func (s *Store) PutTask(t registry.Task) {
	s.Add(File{Tasks: []registry.Task{t}})
}

// PutDocument inserts or replaces a document.
func (s *Store) PutDocument(d registry.Document) {
	s.Add(File{Documents: []registry.Document{d}})
}

// Delete removes the entity of kind with id. Unknown ids are ignored.
func (s *Store) Delete(kind projection.Kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case projection.KindCase:
		delete(s.cases, id)
		delete(s.roles, id)
	case projection.KindTask:
		delete(s.tasks, id)
	case projection.KindDocument:
		delete(s.documents, id)
	}
}

// SetUnavailable makes every read fail with a SourceUnavailable error wrapping
// cause, until called with nil.
func (s *Store) SetUnavailable(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = cause
}

func (s *Store) check() error {
	if s.unavailable != nil {
		return cserrors.SourceUnavailable("fixture registry unavailable", s.unavailable)
	}
	return nil
}

// Case implements registry.CaseRegistry.
func (s *Store) Case(_ context.Context, id string) (*registry.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	c, ok := s.cases[id]
	if !ok {
		return nil, cserrors.NotFound(string(projection.KindCase), id)
	}
	cp := *c
	return &cp, nil
}

// Roles implements registry.CaseRegistry.
func (s *Store) Roles(_ context.Context, caseID string) ([]registry.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return append([]registry.Role(nil), s.roles[caseID]...), nil
}

// Task implements registry.TaskRegistry.
func (s *Store) Task(_ context.Context, id string) (*registry.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	t, ok := s.tasks[id]
	if !ok {
		return nil, cserrors.NotFound(string(projection.KindTask), id)
	}
	cp := *t
	return &cp, nil
}

// OpenTaskIDs implements registry.TaskRegistry.
func (s *Store) OpenTaskIDs(_ context.Context, caseID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	var ids []string
	for id, t := range s.tasks {
		if t.CaseUUID == caseID && t.State != registry.TaskCompleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Document implements registry.DocumentRegistry.
func (s *Store) Document(_ context.Context, id string) (*registry.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	d, ok := s.documents[id]
	if !ok {
		return nil, cserrors.NotFound(string(projection.KindDocument), id)
	}
	cp := *d
	return &cp, nil
}

// CaseType implements registry.Catalog.
func (s *Store) CaseType(_ context.Context, id string) (*registry.CaseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	ct, ok := s.caseTypes[id]
	if !ok {
		return nil, cserrors.NotFound("CASETYPE", id)
	}
	cp := *ct
	return &cp, nil
}

// Status implements registry.Catalog.
func (s *Store) Status(_ context.Context, id string) (*registry.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	st, ok := s.statuses[id]
	if !ok {
		return nil, cserrors.NotFound("STATUS", id)
	}
	cp := *st
	return &cp, nil
}

// ListIDs implements registry.Lister. Ids are returned in ascending order.
func (s *Store) ListIDs(_ context.Context, kind projection.Kind, offset, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	ids := s.idsLocked(kind)
	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return ids[offset:end], nil
}

// IDs returns all ids of kind, sorted.
func (s *Store) IDs(kind projection.Kind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idsLocked(kind)
}

func (s *Store) idsLocked(kind projection.Kind) []string {
	var ids []string
	switch kind {
	case projection.KindCase:
		for id := range s.cases {
			ids = append(ids, id)
		}
	case projection.KindTask:
		for id, t := range s.tasks {
			if t.State != registry.TaskCompleted {
				ids = append(ids, id)
			}
		}
	case projection.KindDocument:
		for id := range s.documents {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

var _ registry.Registry = (*Store)(nil)
