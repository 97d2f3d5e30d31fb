// Package runner is a reference execution backend: it receives resolved
// workflow steps over HTTP and performs them in a real browser.
package runner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// Log lines of a browser run.
const (
	LineBrowserStarted = "🚀 Browser Started"
	LineStepOK         = "  ✅ Success"
	LineStepFailed     = "  ❌ Failed: "
	LineInterrupted    = "❌ Execution Interrupted: "
	LineClosing        = "🏁 Closing Browser session."
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Executor runs automation requests, one browser session per request.
type Executor struct {
	launcher    Launcher
	stepTimeout time.Duration
	logger      Logger
}

// NewExecutor creates an Executor. A zero stepTimeout leaves steps unbounded.
func NewExecutor(launcher Launcher, stepTimeout time.Duration, logger Logger) *Executor {
	return &Executor{launcher: launcher, stepTimeout: stepTimeout, logger: logger}
}

// Execute performs the steps in order and stops at the first failure. The
// result is SUCCESS only when every step succeeded.
func (e *Executor) Execute(ctx context.Context, req models.AutomationRequest) models.AutomationResult {
	logs := []string{}

	browser, err := e.launcher.Launch(ctx)
	if err != nil {
		e.logger.Error("browser launch failed", "workflow_id", req.WorkflowID, "error", err)
		logs = append(logs, LineInterrupted+err.Error())
		return models.AutomationResult{Status: models.RunStatusFailure, Logs: logs}
	}
	defer func() {
		if err := browser.Close(); err != nil {
			e.logger.Warn("browser close failed", "error", err)
		}
	}()

	logs = append(logs, LineBrowserStarted)
	status := models.RunStatusSuccess
	for i, step := range req.Steps {
		logs = append(logs, fmt.Sprintf("Step %d: %s", i+1, step.Operation))
		if err := e.executeStep(ctx, browser, step); err != nil {
			e.logger.Info("step failed", "workflow_id", req.WorkflowID, "step", i+1, "error", err)
			logs = append(logs, LineStepFailed+err.Error(), LineInterrupted+err.Error())
			status = models.RunStatusFailure
			break
		}
		logs = append(logs, LineStepOK)
	}

	logs = append(logs, LineClosing)
	e.logger.Info("automation finished", "workflow_id", req.WorkflowID, "status", status, "steps", len(req.Steps))
	return models.AutomationResult{Status: status, Logs: logs}
}

// executeStep performs one step. Waits are not bounded by the step timeout.
func (e *Executor) executeStep(ctx context.Context, browser Browser, step models.AutomationStep) error {
	if step.Operation == models.OpWait {
		ms, err := strconv.ParseInt(strings.TrimSpace(step.Value), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid wait duration %q", step.Value)
		}
		return sleepCtx(ctx, time.Duration(ms)*time.Millisecond)
	}

	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}
	sel := Selector{Value: step.Locator, Type: step.LocatorType}

	switch step.Operation {
	case models.OpOpenURL:
		return browser.Navigate(ctx, step.Value)
	case models.OpClick:
		return browser.Click(ctx, sel)
	case models.OpInput:
		return browser.Type(ctx, sel, step.Value)
	case models.OpAssertText:
		text, err := browser.Text(ctx, sel)
		if err != nil {
			return err
		}
		if !strings.Contains(text, step.Value) {
			return fmt.Errorf("Assertion Failed. Expected '%s' but found '%s'", step.Value, text)
		}
		return nil
	case models.OpConfirmModal:
		return browser.ConfirmDialog(ctx)
	default:
		return fmt.Errorf("unsupported operation: %s", step.Operation)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
