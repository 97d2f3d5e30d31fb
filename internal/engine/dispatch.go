package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaijie-yu/google-ui/internal/services"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

// Log lines written around a remote dispatch.
const (
	RemoteHeader   = "--- CONTACTING AUTOMATION BACKEND ---"
	RemoteReceived = "✅ Backend received request."
	RemoteLaunch   = "Browser launching on host machine..."
)

var errNoBackend = errors.New("no automation backend configured")

// RemoteDispatcher sends a workflow to the external execution backend.
type RemoteDispatcher struct {
	dir     ElementDirectory
	backend services.AutomationBackend
	logger  Logger
}

// BuildRequest resolves every step target into a locator. Unresolved
// targets become an empty XPATH locator.
func BuildRequest(ctx context.Context, dir ElementDirectory, wf models.Workflow, logger Logger) models.AutomationRequest {
	req := models.AutomationRequest{
		WorkflowID: wf.ID,
		Steps:      make([]models.AutomationStep, 0, len(wf.Steps)),
	}
	for _, step := range wf.Steps {
		out := models.AutomationStep{
			Operation:   step.Operation,
			LocatorType: models.LocatorXPath,
			Value:       step.Value,
		}
		if el := resolveElement(ctx, dir, step.TargetElementID, logger); el != nil {
			out.Locator = el.Locator
			out.LocatorType = el.LocatorType
		}
		req.Steps = append(req.Steps, out)
	}
	return req
}

// Dispatch runs wf on the backend, appending the backend trace to log. A
// non-nil error means no usable response was obtained. Only the header lines
// are written in that case, plus the acknowledgement lines when the backend
// answered 2xx with an undecodable body.
func (d *RemoteDispatcher) Dispatch(ctx context.Context, wf models.Workflow, log *ExecutionLog) (models.RunStatus, error) {
	if d.backend == nil {
		log.Append(RemoteHeader)
		return "", errNoBackend
	}

	log.Append(RemoteHeader, fmt.Sprintf("Sending payload to %s%s ...", d.backend.BaseURL(), services.RunAutomationPath))

	req := BuildRequest(ctx, d.dir, wf, d.logger)
	result, err := d.backend.RunAutomation(ctx, req)
	if err != nil {
		// The backend accepted the request; only its answer was unusable.
		var decodeErr *services.DecodeError
		if errors.As(err, &decodeErr) {
			log.Append(RemoteReceived, RemoteLaunch)
		}
		return "", err
	}

	status := result.Status
	if status != models.RunStatusSuccess {
		status = models.RunStatusFailure
	}

	log.Append(RemoteReceived, RemoteLaunch)
	log.Append(result.Logs...)
	log.Append(fmt.Sprintf("Final Status: %s", result.Status))
	return status, nil
}

// fallbackNotice is the diagnostic block written before falling back to simulation.
func (d *RemoteDispatcher) fallbackNotice(err error, grace time.Duration) []string {
	base := "<unset>"
	if d.backend != nil {
		base = d.backend.BaseURL()
	}
	return []string{
		"❌ CONNECTION FAILED",
		fmt.Sprintf("Could not connect to automation backend at %s.", base),
		fmt.Sprintf("Reason: %v", err),
		"1. Ensure the automation backend is running.",
		"2. Verify CORS is enabled on the backend.",
		fmt.Sprintf("Falling back to Simulation Mode in %s...", grace),
	}
}

// resolveElement looks up id in the directory. Missing or failing lookups
// yield nil; they never abort a run.
func resolveElement(ctx context.Context, dir ElementDirectory, id string, logger Logger) *models.Element {
	if id == "" || dir == nil {
		return nil
	}
	el, err := dir.GetElement(ctx, id)
	if err != nil {
		logger.Debug("element not resolved", "element_id", id, "error", err)
		return nil
	}
	return el
}
