package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// MemoryStore is an in-process Repository. Iteration order is insertion
// order; replacing a record keeps its position.
type MemoryStore struct {
	mu        sync.RWMutex
	elements  []models.Element
	workflows []models.Workflow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) ListElements(ctx context.Context) ([]models.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.elements), nil
}

func (s *MemoryStore) GetElement(ctx context.Context, id string) (*models.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.elements {
		if e.ID == id {
			el := e
			return &el, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateElement(ctx context.Context, element *models.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = append(s.elements, *element)
	return nil
}

func (s *MemoryStore) DeleteElement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = slices.DeleteFunc(s.elements, func(e models.Element) bool { return e.ID == id })
	return nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		c := w.Clone()
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.workflows {
		if w.ID == id {
			c := w.Clone()
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := workflow.Clone()
	for i := range s.workflows {
		if s.workflows[i].ID == workflow.ID {
			s.workflows[i] = c
			return nil
		}
	}
	s.workflows = append(s.workflows, c)
	return nil
}

func (s *MemoryStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = slices.DeleteFunc(s.workflows, func(w models.Workflow) bool { return w.ID == id })
	return nil
}
