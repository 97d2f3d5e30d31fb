package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

// blockingBackend holds every dispatch until release is closed.
type blockingBackend struct {
	release chan struct{}
}

func (b *blockingBackend) RunAutomation(ctx context.Context, req models.AutomationRequest) (*models.AutomationResult, error) {
	<-b.release
	return &models.AutomationResult{Status: models.RunStatusSuccess, Logs: []string{"remote ok"}}, nil
}

func (b *blockingBackend) BaseURL() string { return "http://blocking" }

type testEnv struct {
	echo    *echo.Echo
	store   *repository.MemoryStore
	session *engine.Session
}

func newTestEnv(t *testing.T, opts engine.Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreateElement(ctx, &models.Element{ID: "E1", Name: "Login Username", Locator: "#username", LocatorType: models.LocatorID}))
	require.NoError(t, store.CreateElement(ctx, &models.Element{ID: "E2", Name: "Submit Button", Locator: `//button[@type="submit"]`, LocatorType: models.LocatorXPath}))
	require.NoError(t, store.UpsertWorkflow(ctx, &models.Workflow{
		ID:            "w1",
		Name:          "Standard Login Flow",
		LastRunStatus: models.RunStatusNone,
		Steps: []models.Step{
			{ID: "s0", Operation: models.OpOpenURL, Value: "https://example.com/login"},
			{ID: "s1", Operation: models.OpInput, TargetElementID: "E1", Value: "admin"},
			{ID: "s2", Operation: models.OpClick, TargetElementID: "E2"},
		},
	}))

	logger := logging.NewNop()
	opts.Directory = store
	opts.Store = store
	opts.Logger = logger
	session := engine.NewSession(opts)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger)
	RegisterHandlers(e.Group("/api/v1"), NewHandler(store, session, logger))
	return &testEnv{echo: e, store: store, session: session}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode[HealthStatus](t, rec)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Storage)
}

func TestListOperations(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	rec := env.do(t, http.MethodGet, "/api/v1/operations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	ops := decode[[]models.OperationInfo](t, rec)
	require.Len(t, ops, 6)
	assert.Equal(t, models.OpOpenURL, ops[0].Operation)
	assert.Equal(t, "Open Webpage", ops[0].Label)
}

func TestElements(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	t.Run("search by name or locator", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/elements?q=BUTTON", "")
		require.Equal(t, http.StatusOK, rec.Code)
		els := decode[[]models.Element](t, rec)
		require.Len(t, els, 1)
		assert.Equal(t, "E2", els[0].ID)

		rec = env.do(t, http.MethodGet, "/api/v1/elements?q=%23user", "")
		els = decode[[]models.Element](t, rec)
		require.Len(t, els, 1)
		assert.Equal(t, "E1", els[0].ID)
	})

	t.Run("create defaults to XPATH", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/elements", `{"name":"Logout","locator":"//a[@id='logout']"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		el := decode[models.Element](t, rec)
		assert.NotEmpty(t, el.ID)
		assert.Equal(t, models.LocatorXPath, el.LocatorType)

		all, err := env.store.ListElements(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("create requires name and locator", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/elements", `{"name":"  ","locator":"#x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
		problem := decode[ProblemDetails](t, rec)
		assert.Equal(t, "name and locator are required", problem.Detail)
	})

	t.Run("create rejects unknown locator type", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/elements", `{"name":"x","locator":"#x","locatorType":"TEXT"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/elements/E1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := env.store.GetElement(context.Background(), "E1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestWorkflows(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	rec := env.do(t, http.MethodPut, "/api/v1/workflows", `{"name":"Checkout","steps":[{"operation":"WAIT","value":"100"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	wf := decode[models.Workflow](t, rec)
	assert.NotEmpty(t, wf.ID)
	assert.NotEmpty(t, wf.Steps[0].ID)
	assert.Equal(t, models.RunStatusNone, wf.LastRunStatus)

	rec = env.do(t, http.MethodGet, "/api/v1/workflows", "")
	list := decode[[]models.Workflow](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "w1", list[0].ID)
	assert.Equal(t, wf.ID, list[1].ID)

	rec = env.do(t, http.MethodPut, "/api/v1/workflows", `{"name":"Bad","steps":[{"operation":"HOVER"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/workflows/"+wf.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/workflows", "")
	assert.Len(t, decode[[]models.Workflow](t, rec), 1)
}

func TestBuilder_EditRunSave(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	rec := env.do(t, http.MethodPost, "/api/v1/builder/steps", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "no draft open")

	rec = env.do(t, http.MethodPost, "/api/v1/builder/workflows/nope/select", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/workflows/w1/select", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/steps", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	step := decode[models.Step](t, rec)
	assert.Equal(t, models.OpClick, step.Operation)
	assert.Equal(t, "E1", step.TargetElementID)

	rec = env.do(t, http.MethodPatch, "/api/v1/builder/steps/"+step.ID, `{"operation":"ASSERT_TEXT","value":"Welcome"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[engine.State](t, rec)
	require.Len(t, state.Draft.Steps, 4)
	assert.Equal(t, models.OpAssertText, state.Draft.Steps[3].Operation)
	assert.Equal(t, "Welcome", state.Draft.Steps[3].Value)
	assert.Equal(t, "E1", state.Draft.Steps[3].TargetElementID)

	rec = env.do(t, http.MethodPatch, "/api/v1/builder/steps/"+step.ID, `{"operation":"HOVER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/steps/reorder", `{"from":3,"to":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[engine.State](t, rec)
	assert.Equal(t, step.ID, state.Draft.Steps[0].ID)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/steps/reorder", `{"from":0,"to":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/builder/mode", `{"mode":"TURBO"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.session.Wait()

	rec = env.do(t, http.MethodGet, "/api/v1/builder/log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[engine.LogSnapshot](t, rec)
	assert.True(t, snap.Finished)
	assert.Equal(t, models.RunStatusSuccess, snap.Status)
	assert.Len(t, snap.Lines, 2*4+3)

	// The committed copy changes only on save.
	committed, err := env.store.GetWorkflow(context.Background(), "w1")
	require.NoError(t, err)
	assert.Len(t, committed.Steps, 3)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/save", "")
	require.Equal(t, http.StatusOK, rec.Code)
	committed, err = env.store.GetWorkflow(context.Background(), "w1")
	require.NoError(t, err)
	assert.Len(t, committed.Steps, 4)
	assert.Equal(t, models.RunStatusSuccess, committed.LastRunStatus)
	assert.NotNil(t, committed.LastRunDate)
}

func TestBuilder_NewWorkflowHasEmptySteps(t *testing.T) {
	env := newTestEnv(t, engine.Options{})

	rec := env.do(t, http.MethodPost, "/api/v1/builder/new", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"steps":[]`)
	draft := decode[models.Workflow](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/builder", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"steps":[]`)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/save", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"steps":[]`)

	rec = env.do(t, http.MethodGet, "/api/v1/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"steps":null`)
	var saved []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	var found bool
	for _, wf := range saved {
		if string(wf["id"]) == `"`+draft.ID+`"` {
			found = true
			assert.JSONEq(t, `[]`, string(wf["steps"]))
		}
	}
	assert.True(t, found, "saved workflow is listed")

	rec = env.do(t, http.MethodPut, "/api/v1/workflows", `{"id":"w2","name":"Bare"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	committed, err := env.store.GetWorkflow(context.Background(), "w2")
	require.NoError(t, err)
	assert.NotNil(t, committed.Steps)
	assert.Empty(t, committed.Steps)
}

func TestBuilder_Drag(t *testing.T) {
	env := newTestEnv(t, engine.Options{})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/builder/workflows/w1/select", "").Code)

	rec := env.do(t, http.MethodPost, "/api/v1/builder/drag", `{"action":"over","index":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no drag started")

	rec = env.do(t, http.MethodPost, "/api/v1/builder/drag", `{"action":"start","index":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/builder/drag", `{"action":"over","index":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[engine.State](t, rec)
	require.NotNil(t, state.DragIndex)
	assert.Equal(t, 2, *state.DragIndex)
	assert.Equal(t, []string{"s1", "s2", "s0"}, stepIDs(state.Draft))

	rec = env.do(t, http.MethodPost, "/api/v1/builder/drag", `{"action":"end"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[engine.State](t, rec)
	assert.Nil(t, state.DragIndex)

	rec = env.do(t, http.MethodPost, "/api/v1/builder/drag", `{"action":"fling"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuilder_LockedDuringRun(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	env := newTestEnv(t, engine.Options{Backend: backend, Mode: engine.ModeReal})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/builder/workflows/w1/select", "").Code)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/builder/run", "").Code)

	rec := env.do(t, http.MethodPost, "/api/v1/builder/steps", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/builder/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/builder", "")
	state := decode[engine.State](t, rec)
	assert.Equal(t, engine.StateRunningRemote, state.RunState)
	assert.False(t, state.Editable)
	assert.Equal(t, models.RunStatusPending, state.Draft.LastRunStatus)

	close(backend.release)
	env.session.Wait()

	rec = env.do(t, http.MethodGet, "/api/v1/builder", "")
	state = decode[engine.State](t, rec)
	assert.Equal(t, engine.StateIdle, state.RunState)
	assert.Equal(t, models.RunStatusSuccess, state.Draft.LastRunStatus)
	assert.Contains(t, state.Log.Lines, "remote ok")
}

func TestStreamLog(t *testing.T) {
	env := newTestEnv(t, engine.Options{})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/builder/workflows/w1/select", "").Code)
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/builder/run", "").Code)

	srv := httptest.NewServer(env.echo)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/builder/log/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var lines []string
	for {
		var ev LogEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == EventEnd {
			assert.Equal(t, models.RunStatusSuccess, ev.Status)
			break
		}
		assert.Equal(t, len(lines), ev.Index)
		lines = append(lines, ev.Line)
	}

	require.Len(t, lines, 2*3+3)
	assert.Equal(t, engine.SimulationHeader, lines[0])
	assert.Equal(t, engine.SimulationPassed, lines[len(lines)-1])
}

func TestErrorHandler_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{engine.ErrRunInProgress, http.StatusConflict},
		{engine.ErrNoDraft, http.StatusConflict},
		{engine.ErrWorkflowNotFound, http.StatusNotFound},
		{repository.ErrNotFound, http.StatusNotFound},
		{engine.ErrIndexOutOfRange, http.StatusBadRequest},
		{engine.ErrInvalidRunMode, http.StatusBadRequest},
		{echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{assert.AnError, http.StatusInternalServerError},
	}
	handler := ErrorHandler(logging.NewNop())
	for _, tc := range cases {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		rec := httptest.NewRecorder()
		handler(tc.err, e.NewContext(req, rec))

		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		problem := decode[ProblemDetails](t, rec)
		assert.Equal(t, tc.code, problem.Status)
		assert.Equal(t, "/x", problem.Instance)
	}
}

func TestSpecHandler_SubstitutesIssuer(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, SpecHandler("https://acme.okta.com/oauth2/default")(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://acme.okta.com/oauth2/default/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")
}

func stepIDs(wf *models.Workflow) []string {
	ids := make([]string, len(wf.Steps))
	for i, s := range wf.Steps {
		ids[i] = s.ID
	}
	return ids
}

func TestSwaggerHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	req.Host = "localhost:8090"
	rec := httptest.NewRecorder()

	require.NoError(t, SwaggerHandler("spa-client", []string{"openid", "email"})(e.NewContext(req, rec)))

	body := rec.Body.String()
	assert.Contains(t, body, `clientId: "spa-client"`)
	assert.Contains(t, body, `scopes: "openid email"`)
	assert.Contains(t, body, "http://localhost:8090/docs/oauth2-redirect.html")
}
