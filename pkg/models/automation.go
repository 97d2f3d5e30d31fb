package models

// AutomationStep is one step of the execution backend payload, with the
// target element already resolved to its locator.
type AutomationStep struct {
	Operation   Operation   `json:"operation"`
	Locator     string      `json:"locator"`
	LocatorType LocatorType `json:"locatorType"`
	Value       string      `json:"value"`
}

// AutomationRequest is the body of POST /api/run-automation.
type AutomationRequest struct {
	WorkflowID string           `json:"workflowId"`
	Steps      []AutomationStep `json:"steps"`
}

// AutomationResult is the execution backend response.
type AutomationResult struct {
	Status RunStatus `json:"status"`
	Logs   []string  `json:"logs"`
}
