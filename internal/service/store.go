// Package service implements the orchestrator's application services: the
// workflow engine and the named-function dispatch surface.
package service

import (
	"fmt"
	"sync"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/workflow"
)

// workflowStore is the mutex-guarded in-memory workflow map. All reads
// return deep copies; mutations go through mutate so step updates and
// context merges are atomic per workflow.
type workflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	order     []string
}

func newWorkflowStore() *workflowStore {
	return &workflowStore{workflows: make(map[string]*workflow.Workflow)}
}

func (s *workflowStore) put(w *workflow.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.ID] = w.Clone()
	s.order = append(s.order, w.ID)
}

func (s *workflowStore) get(id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}
	return w.Clone(), nil
}

func (s *workflowStore) list() []*workflow.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*workflow.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.workflows[id].Clone())
	}
	return out
}

// mutate runs fn against the stored record under the write lock and
// returns a snapshot of the result.
func (s *workflowStore) mutate(id string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	return w.Clone(), nil
}
