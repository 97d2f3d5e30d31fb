package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

// fakeBrowser records calls and serves page text from a map keyed by locator.
type fakeBrowser struct {
	calls  []string
	texts  map[string]string
	fail   map[string]error
	dialog bool
	closed bool
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.calls = append(b.calls, "navigate "+url)
	return b.fail[url]
}

func (b *fakeBrowser) Click(ctx context.Context, sel Selector) error {
	b.calls = append(b.calls, "click "+sel.Value)
	return b.fail[sel.Value]
}

func (b *fakeBrowser) Type(ctx context.Context, sel Selector, text string) error {
	b.calls = append(b.calls, "type "+sel.Value+" "+text)
	return b.fail[sel.Value]
}

func (b *fakeBrowser) Text(ctx context.Context, sel Selector) (string, error) {
	b.calls = append(b.calls, "text "+sel.Value)
	return b.texts[sel.Value], b.fail[sel.Value]
}

func (b *fakeBrowser) ConfirmDialog(ctx context.Context) error {
	b.calls = append(b.calls, "confirm")
	if !b.dialog {
		return ErrNoDialog
	}
	return nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeLauncher struct {
	browser *fakeBrowser
	err     error
}

func (l *fakeLauncher) Launch(ctx context.Context) (Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func loginRequest() models.AutomationRequest {
	return models.AutomationRequest{
		WorkflowID: "w1",
		Steps: []models.AutomationStep{
			{Operation: models.OpOpenURL, Value: "https://example.com/login", LocatorType: models.LocatorXPath},
			{Operation: models.OpInput, Locator: "#username", LocatorType: models.LocatorID, Value: "admin"},
			{Operation: models.OpClick, Locator: `//button[@type="submit"]`, LocatorType: models.LocatorXPath},
			{Operation: models.OpAssertText, Locator: ".banner", LocatorType: models.LocatorCSS, Value: "Welcome"},
		},
	}
}

func TestExecute_Success(t *testing.T) {
	browser := &fakeBrowser{texts: map[string]string{".banner": "Welcome back, admin"}}
	exec := NewExecutor(&fakeLauncher{browser: browser}, time.Second, logging.NewNop())

	result := exec.Execute(context.Background(), loginRequest())

	assert.Equal(t, models.RunStatusSuccess, result.Status)
	assert.Equal(t, []string{
		LineBrowserStarted,
		"Step 1: OPEN_URL", LineStepOK,
		"Step 2: INPUT", LineStepOK,
		"Step 3: CLICK", LineStepOK,
		"Step 4: ASSERT_TEXT", LineStepOK,
		LineClosing,
	}, result.Logs)
	assert.Equal(t, []string{
		"navigate https://example.com/login",
		"type #username admin",
		`click //button[@type="submit"]`,
		"text .banner",
	}, browser.calls)
	assert.True(t, browser.closed)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	browser := &fakeBrowser{fail: map[string]error{`//button[@type="submit"]`: errors.New("element not visible")}}
	exec := NewExecutor(&fakeLauncher{browser: browser}, time.Second, logging.NewNop())

	result := exec.Execute(context.Background(), loginRequest())

	assert.Equal(t, models.RunStatusFailure, result.Status)
	assert.Equal(t, []string{
		LineBrowserStarted,
		"Step 1: OPEN_URL", LineStepOK,
		"Step 2: INPUT", LineStepOK,
		"Step 3: CLICK",
		"  ❌ Failed: element not visible",
		"❌ Execution Interrupted: element not visible",
		LineClosing,
	}, result.Logs)
	assert.Len(t, browser.calls, 3, "step 4 never runs")
	assert.True(t, browser.closed)
}

func TestExecute_AssertionMismatch(t *testing.T) {
	browser := &fakeBrowser{texts: map[string]string{".banner": "Invalid credentials"}}
	exec := NewExecutor(&fakeLauncher{browser: browser}, time.Second, logging.NewNop())

	result := exec.Execute(context.Background(), loginRequest())

	assert.Equal(t, models.RunStatusFailure, result.Status)
	assert.Contains(t, result.Logs, "  ❌ Failed: Assertion Failed. Expected 'Welcome' but found 'Invalid credentials'")
}

func TestExecute_LaunchFailure(t *testing.T) {
	exec := NewExecutor(&fakeLauncher{err: errors.New("chrome not found")}, time.Second, logging.NewNop())

	result := exec.Execute(context.Background(), loginRequest())

	assert.Equal(t, models.RunStatusFailure, result.Status)
	assert.Equal(t, []string{"❌ Execution Interrupted: chrome not found"}, result.Logs)
}

func TestExecute_WaitAndConfirm(t *testing.T) {
	tests := []struct {
		name   string
		step   models.AutomationStep
		dialog bool
		status models.RunStatus
	}{
		{"wait", models.AutomationStep{Operation: models.OpWait, Value: "5"}, false, models.RunStatusSuccess},
		{"wait not a number", models.AutomationStep{Operation: models.OpWait, Value: "soon"}, false, models.RunStatusFailure},
		{"confirm", models.AutomationStep{Operation: models.OpConfirmModal}, true, models.RunStatusSuccess},
		{"confirm without dialog", models.AutomationStep{Operation: models.OpConfirmModal}, false, models.RunStatusFailure},
		{"unknown operation", models.AutomationStep{Operation: "HOVER"}, false, models.RunStatusFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser := &fakeBrowser{dialog: tt.dialog}
			exec := NewExecutor(&fakeLauncher{browser: browser}, time.Second, logging.NewNop())

			result := exec.Execute(context.Background(), models.AutomationRequest{Steps: []models.AutomationStep{tt.step}})

			assert.Equal(t, tt.status, result.Status, result.Logs)
		})
	}
}

func TestQueryOptions(t *testing.T) {
	value, opt, err := queryOptions(Selector{Value: "#username", Type: models.LocatorID})
	require.NoError(t, err)
	assert.Equal(t, "username", value)
	assert.NotNil(t, opt)

	value, _, err = queryOptions(Selector{Value: "//button", Type: models.LocatorXPath})
	require.NoError(t, err)
	assert.Equal(t, "//button", value)

	_, _, err = queryOptions(Selector{Value: "x", Type: "TEXT"})
	assert.EqualError(t, err, "unknown locator type: TEXT")

	_, _, err = queryOptions(Selector{Type: models.LocatorCSS})
	assert.Error(t, err)
}
