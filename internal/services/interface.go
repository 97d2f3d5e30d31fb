package services

import (
	"context"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// AutomationBackend is the client side of the external execution backend.
type AutomationBackend interface {
	// RunAutomation sends the resolved steps and returns the backend's log
	// and terminal status.
	RunAutomation(ctx context.Context, req models.AutomationRequest) (*models.AutomationResult, error)
	// BaseURL is the backend address, used in user-facing diagnostics.
	BaseURL() string
}
