package repository

import (
	"context"
	"errors"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ElementStore stores the page elements that steps target.
type ElementStore interface {
	// ListElements returns all elements in insertion order.
	ListElements(ctx context.Context) ([]models.Element, error)
	// GetElement retrieves an element by its ID.
	GetElement(ctx context.Context, id string) (*models.Element, error)
	// CreateElement appends a new element.
	CreateElement(ctx context.Context, element *models.Element) error
	// DeleteElement removes an element. Deleting a missing id is not an error.
	DeleteElement(ctx context.Context, id string) error
}

// WorkflowStore holds the committed copies of workflows.
type WorkflowStore interface {
	// ListWorkflows returns all workflows in store order.
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// GetWorkflow retrieves a workflow by its ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// UpsertWorkflow replaces the workflow with the same ID in place, or
	// appends it when the ID is new.
	UpsertWorkflow(ctx context.Context, workflow *models.Workflow) error
	// DeleteWorkflow removes a workflow. Deleting a missing id is not an error.
	DeleteWorkflow(ctx context.Context, id string) error
}

// Repository is the full persistence surface of the application.
type Repository interface {
	ElementStore
	WorkflowStore
	Ping(ctx context.Context) error
}
