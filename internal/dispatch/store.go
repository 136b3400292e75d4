// Package dispatch implements the agent-side capability dispatcher: an
// in-memory task store plus the handler table that executes tasks
// asynchronously from the HTTP requests that create them.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/task"
)

// Store is a mutex-guarded in-memory task store with an append-only message
// list per task. All returned tasks are snapshots.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]*task.Task
	messages map[string][]task.Message
	now      func() time.Time
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{
		tasks:    make(map[string]*task.Task),
		messages: make(map[string][]task.Message),
		now:      time.Now,
	}
}

// Put inserts a new task.
func (s *Store) Put(t *task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
}

// Get returns a snapshot of the task with the given id.
func (s *Store) Get(id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// List returns snapshots of all tasks.
func (s *Store) List() []*task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Transition atomically moves a task to the next status, applying mutate to
// the stored record while the lock is held. Illegal transitions are
// rejected with a validation error and leave the task untouched.
func (s *Store) Transition(id string, next task.Status, mutate func(*task.Task)) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if !t.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: cannot transition task from %s to %s", domain.ErrValidation, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = s.now()
	if mutate != nil {
		mutate(t)
	}
	return t.Clone(), nil
}

// Apply mutates the stored record in place without a status transition,
// refreshing updated_at.
func (s *Store) Apply(id string, mutate func(*task.Task)) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	t.UpdatedAt = s.now()
	mutate(t)
	return t.Clone(), nil
}

// AppendMessage appends a message to the task's message list.
func (s *Store) AppendMessage(taskID string, msg task.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	s.messages[taskID] = append(s.messages[taskID], msg)
	return nil
}

// Messages returns the task's messages in append order.
func (s *Store) Messages(taskID string) ([]task.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tasks[taskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return append([]task.Message(nil), s.messages[taskID]...), nil
}
