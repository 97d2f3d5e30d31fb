package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// RunAutomationPath is the single endpoint of the execution backend.
const RunAutomationPath = "/api/run-automation"

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Server Error: %d", e.Code)
}

// DecodeError is returned when the backend accepted the request but its
// response body could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HTTPAutomationClient is an HTTP implementation of the AutomationBackend interface.
type HTTPAutomationClient struct {
	url    string
	client *http.Client
}

// NewHTTPAutomationClient creates a new HTTPAutomationClient. A zero timeout
// leaves requests bounded only by their context.
func NewHTTPAutomationClient(url string, timeout time.Duration) *HTTPAutomationClient {
	return &HTTPAutomationClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend base URL.
func (c *HTTPAutomationClient) BaseURL() string {
	return c.url
}

// Endpoint returns the full URL requests are posted to.
func (c *HTTPAutomationClient) Endpoint() string {
	return c.url + RunAutomationPath
}

// RunAutomation posts the request and decodes the backend result.
func (c *HTTPAutomationClient) RunAutomation(ctx context.Context, payload models.AutomationRequest) (*models.AutomationResult, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var result models.AutomationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &result, nil
}
