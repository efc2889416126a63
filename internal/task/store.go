package task

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nibzard/timeblock/internal/graph"
)

// ErrUnknownDependency is reported by ReplaceAll for references to ids that
// are not part of the incoming task set.
var ErrUnknownDependency = errors.New("unknown dependency")

// IDPrefix prefixes generated task ids.
const IDPrefix = "task-"

// Store is the authoritative in-memory task collection.
//
// Every mutating operation is atomic: it either commits the full change,
// including dependency cleanup, or leaves the store untouched. Mutations are
// serialized by a single-writer mutex.
type Store struct {
	mu      sync.Mutex
	order   []string
	tasks   map[string]Task
	retired map[string]bool
	newID   func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides the id generator used when Add receives no id.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		tasks:   make(map[string]Task),
		retired: make(map[string]bool),
		newID: func() string {
			return IDPrefix + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates d and appends it to the store.
func (s *Store) Add(d Draft) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := fieldsFromDraft(d)
	verr := &ValidationError{}
	f.id = strings.TrimSpace(f.id)
	if f.id == "" {
		f.id = s.generateIDLocked()
	} else if _, exists := s.tasks[f.id]; exists {
		verr.add("id", fmt.Errorf("%w: %s", ErrDuplicateID, f.id))
	} else if s.retired[f.id] {
		verr.add("id", fmt.Errorf("%w: %s", ErrRetiredID, f.id))
	}

	t, berr := build(f)
	if berr != nil {
		verr.Fields = append(verr.Fields, berr.Fields...)
	}
	if len(verr.Fields) > 0 {
		return Task{}, verr
	}

	// A new node can still close a cycle through references that were
	// dangling until now, so the gate runs on add as well.
	if err := s.graphLocked().With(t.ID, t.Dependencies).CheckFrom(t.ID); err != nil {
		return Task{}, err
	}

	s.order = append(s.order, t.ID)
	s.tasks[t.ID] = t
	return t.clone(), nil
}

// Update merges p into the task with the given id. The merged record is
// validated as a whole; a dependency change is additionally checked for
// cycles against the proposed graph before anything is committed.
func (s *Store) Update(id string, p Patch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("update %q: %w", id, ErrNotFound)
	}

	next, verr := build(fieldsFromTask(current).apply(p))
	if verr != nil {
		return Task{}, verr
	}

	if p.Dependencies != nil && !next.Dependencies.Equal(current.Dependencies) {
		if err := s.graphLocked().With(id, next.Dependencies).CheckFrom(id); err != nil {
			return Task{}, err
		}
	}

	s.tasks[id] = next
	return next.clone(), nil
}

// Delete removes the task and strips its id from every other task's
// dependencies. Deleting an unknown id returns ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}

	delete(s.tasks, id)
	order := s.order[:0]
	for _, k := range s.order {
		if k != id {
			order = append(order, k)
		}
	}
	s.order = order

	for k, t := range s.tasks {
		if t.Dependencies.Contains(id) {
			t.Dependencies = t.Dependencies.Without(id)
			s.tasks[k] = t
		}
	}
	s.retired[id] = true
	return nil
}

// ReplaceAll swaps the whole task set. The incoming set must be valid on its
// own: every record well-formed, ids unique, every dependency resolvable, and
// no cycles. On any failure the store keeps its previous state. Ids that
// were deleted earlier may come back here; Add never accepts them.
func (s *Store) ReplaceAll(records []Record) error {
	return s.replace(records, true)
}

// Restore is ReplaceAll for persisted snapshots: dangling dependency
// references are tolerated because the store itself permits them.
func (s *Store) Restore(records []Record) error {
	return s.replace(records, false)
}

func (s *Store) replace(records []Record, strict bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	verr := &ValidationError{}
	order := make([]string, 0, len(records))
	tasks := make(map[string]Task, len(records))
	index := make(map[string]int, len(records))

	for i, r := range records {
		path := fmt.Sprintf("tasks[%d]", i)
		f := fieldsFromDraft(DraftFromRecord(r))
		f.id = strings.TrimSpace(f.id)
		if f.id == "" {
			f.id = s.generateIDLocked()
		}
		if _, dup := tasks[f.id]; dup {
			verr.add(path+".id", fmt.Errorf("%w: %s", ErrDuplicateID, f.id))
			continue
		}
		t, berr := build(f)
		if berr != nil {
			verr.Fields = append(verr.Fields, berr.prefixed(path)...)
			continue
		}
		order = append(order, t.ID)
		tasks[t.ID] = t
		index[t.ID] = i
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	g := buildGraph(order, tasks)
	if strict {
		for _, id := range order {
			for _, dep := range g.Dangling()[id] {
				verr.add(fmt.Sprintf("tasks[%d].dependencies", index[id]),
					fmt.Errorf("%w: %s", ErrUnknownDependency, dep))
			}
		}
		if len(verr.Fields) > 0 {
			return verr
		}
	}
	if err := g.CheckAll(); err != nil {
		return err
	}

	for id := range s.tasks {
		if _, kept := tasks[id]; !kept {
			s.retired[id] = true
		}
	}
	for id := range tasks {
		delete(s.retired, id)
	}
	s.order = order
	s.tasks = tasks
	return nil
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// List returns all tasks in insertion order.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].clone())
	}
	return out
}

// Records returns the wire form of all tasks in insertion order.
func (s *Store) Records() []Record {
	tasks := s.List()
	out := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Record())
	}
	return out
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Graph returns an immutable snapshot of the current dependency graph.
func (s *Store) Graph() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphLocked()
}

// Startable returns the incomplete tasks whose prerequisites are all
// complete, in insertion order.
func (s *Store) Startable() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.graphLocked()
	ids := g.Startable(func(id string) bool {
		return s.tasks[id].Done()
	})
	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tasks[id].clone())
	}
	return out
}

// DependencyLabel describes one prerequisite of a task for display.
type DependencyLabel struct {
	ID       string
	Name     string
	Resolved bool
}

// Label returns the prerequisite's name, or its raw id when it does not
// resolve to a task in the store.
func (l DependencyLabel) Label() string {
	if l.Resolved {
		return l.Name
	}
	return l.ID
}

// DependencyLabels resolves t's prerequisites against the store.
func (s *Store) DependencyLabels(t Task) []DependencyLabel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DependencyLabel, 0, len(t.Dependencies))
	for _, id := range t.Dependencies {
		dep, ok := s.tasks[id]
		out = append(out, DependencyLabel{ID: id, Name: dep.Name, Resolved: ok})
	}
	return out
}

// CanDepend reports whether id may take dep as a prerequisite without
// closing a cycle. It returns the cycle that would form, or nil.
func (s *Store) CanDepend(id, dep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	if t.Dependencies.Contains(dep) {
		return nil
	}
	deps := append(t.Dependencies.Clone(), dep)
	return s.graphLocked().With(id, deps).CheckFrom(id)
}

func (s *Store) graphLocked() *graph.Graph {
	return buildGraph(s.order, s.tasks)
}

func (s *Store) generateIDLocked() string {
	for {
		id := s.newID()
		if _, live := s.tasks[id]; live || s.retired[id] {
			continue
		}
		return id
	}
}

func buildGraph(order []string, tasks map[string]Task) *graph.Graph {
	adj := make(map[string][]string, len(tasks))
	for id, t := range tasks {
		adj[id] = t.Dependencies
	}
	return graph.FromOrdered(order, adj)
}
