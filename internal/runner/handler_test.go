package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/services"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

func newTestEcho() *echo.Echo {
	browser := &fakeBrowser{texts: map[string]string{}}
	logger := logging.NewNop()
	exec := NewExecutor(&fakeLauncher{browser: browser}, time.Second, logger)
	return NewEcho(NewHandler(exec, logger), []string{"http://localhost:5173"})
}

func TestRunAutomation_HTTP(t *testing.T) {
	e := newTestEcho()
	body := `{"workflowId":"w1","steps":[{"operation":"OPEN_URL","locator":"","locatorType":"XPATH","value":"https://example.com"}]}`
	req := httptest.NewRequest(http.MethodPost, services.RunAutomationPath, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.AutomationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.RunStatusSuccess, result.Status)
	assert.Equal(t, LineBrowserStarted, result.Logs[0])
}

func TestRunAutomation_CORSPreflight(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodOptions, services.RunAutomationPath, nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

// The dispatcher's HTTP client speaks the same contract as the runner.
func TestRunAutomation_ClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestEcho())
	defer srv.Close()

	client := services.NewHTTPAutomationClient(srv.URL, 5*time.Second)
	result, err := client.RunAutomation(context.Background(), models.AutomationRequest{
		WorkflowID: "w1",
		Steps:      []models.AutomationStep{{Operation: models.OpWait, Value: "1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, result.Status)
	assert.Equal(t, LineClosing, result.Logs[len(result.Logs)-1])
}
