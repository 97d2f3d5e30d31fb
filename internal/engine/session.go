// Package engine holds the workflow builder state: the draft being edited,
// the run state machine and the two runners (simulated and remote).
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/internal/services"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

var (
	// ErrRunInProgress is returned for edits, selections and run requests
	// made while a run is in flight. The request is dropped.
	ErrRunInProgress = errors.New("a run is in progress")
	// ErrNoDraft is returned when an operation needs an open draft.
	ErrNoDraft = errors.New("no workflow is open")
	// ErrWorkflowNotFound is returned when selecting an unknown workflow.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrIndexOutOfRange is returned for step indices outside the draft.
	ErrIndexOutOfRange = errors.New("step index out of range")
	// ErrNotDragging is returned for drag moves without a drag in progress.
	ErrNotDragging = errors.New("no drag in progress")
	// ErrInvalidRunMode is returned for unknown run mode names.
	ErrInvalidRunMode = errors.New("invalid run mode")
	// ErrInvalidOperation is returned when a step edit names an unknown operation.
	ErrInvalidOperation = errors.New("invalid operation")
)

// DefaultWorkflowName is the name given to freshly created drafts.
const DefaultWorkflowName = "New Test Flow"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ElementDirectory resolves step targets.
type ElementDirectory interface {
	GetElement(ctx context.Context, id string) (*models.Element, error)
	ListElements(ctx context.Context) ([]models.Element, error)
}

// WorkflowStore holds committed workflows.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	UpsertWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// Timing holds the artificial delays of a run.
type Timing struct {
	StepDelay     time.Duration
	SettleDelay   time.Duration
	FallbackGrace time.Duration
}

// DefaultTiming returns the delays used when none are configured.
func DefaultTiming() Timing {
	return Timing{
		StepDelay:     800 * time.Millisecond,
		SettleDelay:   500 * time.Millisecond,
		FallbackGrace: 3 * time.Second,
	}
}

// Options configure a Session.
type Options struct {
	Directory ElementDirectory
	Store     WorkflowStore
	Backend   services.AutomationBackend
	Timing    Timing
	Mode      RunMode
	Logger    Logger

	// OnTransition, when set, is called for every state change while the
	// session lock is held. It must not call back into the Session.
	OnTransition func(from, to RunState)

	now   func() time.Time
	newID func() string
}

// State is a snapshot of the session for presentation.
type State struct {
	Draft     *models.Workflow `json:"draft"`
	RunState  RunState         `json:"runState"`
	Mode      RunMode          `json:"mode"`
	Editable  bool             `json:"editable"`
	DragIndex *int             `json:"dragIndex,omitempty"`
	Log       LogSnapshot      `json:"log"`
}

// Session is the single editing and execution context of the builder. Its
// run lock is global: only one run is in flight at a time.
type Session struct {
	dir          ElementDirectory
	store        WorkflowStore
	simulator    *SimulatedRunner
	dispatcher   *RemoteDispatcher
	grace        time.Duration
	logger       Logger
	metrics      runMetrics
	onTransition func(from, to RunState)
	now          func() time.Time
	newID        func() string

	mu        sync.Mutex
	draft     *models.Workflow
	dragIndex int
	mode      RunMode
	state     RunState
	log       *ExecutionLog
	done      chan struct{}
}

// NewSession creates an idle Session with no draft open.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeSimulated
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.newID == nil {
		opts.newID = uuid.NewString
	}
	return &Session{
		dir:   opts.Directory,
		store: opts.Store,
		simulator: &SimulatedRunner{
			dir:         opts.Directory,
			stepDelay:   opts.Timing.StepDelay,
			settleDelay: opts.Timing.SettleDelay,
			logger:      opts.Logger,
		},
		dispatcher: &RemoteDispatcher{
			dir:     opts.Directory,
			backend: opts.Backend,
			logger:  opts.Logger,
		},
		grace:        opts.Timing.FallbackGrace,
		logger:       opts.Logger,
		metrics:      newRunMetrics(),
		onTransition: opts.OnTransition,
		now:          opts.now,
		newID:        opts.newID,
		dragIndex:    -1,
		mode:         opts.Mode,
		state:        StateIdle,
		log:          NewExecutionLog(),
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		RunState: s.state,
		Mode:     s.mode,
		Editable: !s.state.Running(),
		Log:      s.log.Snapshot(),
	}
	if s.draft != nil {
		d := s.draft.Clone()
		st.Draft = &d
	}
	if s.dragIndex >= 0 {
		i := s.dragIndex
		st.DragIndex = &i
	}
	return st
}

// Draft returns a copy of the open draft.
func (s *Session) Draft() (models.Workflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.Workflow{}, false
	}
	return s.draft.Clone(), true
}

// RunState returns the current state of the run state machine.
func (s *Session) RunState() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Log returns the log of the current (or last) run.
func (s *Session) Log() *ExecutionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// SelectWorkflow opens a copy of the committed workflow id as the draft and
// discards the previous log.
func (s *Session) SelectWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running() {
		return models.Workflow{}, ErrRunInProgress
	}

	wf, err := s.store.GetWorkflow(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Workflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return models.Workflow{}, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	draft := wf.Clone()
	s.openDraft(&draft)
	return draft.Clone(), nil
}

// NewWorkflow opens a fresh, empty draft that is not yet in the store.
func (s *Session) NewWorkflow() (models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running() {
		return models.Workflow{}, ErrRunInProgress
	}

	draft := &models.Workflow{
		ID:            s.newID(),
		Name:          DefaultWorkflowName,
		Steps:         []models.Step{},
		LastRunStatus: models.RunStatusNone,
	}
	s.openDraft(draft)
	return draft.Clone(), nil
}

// openDraft replaces the draft and its log. Callers hold s.mu.
func (s *Session) openDraft(draft *models.Workflow) {
	s.draft = draft
	s.dragIndex = -1
	s.log.retire()
	s.log = NewExecutionLog()
}

// editable returns the draft if it may be edited. Callers hold s.mu.
func (s *Session) editable() (*models.Workflow, error) {
	if s.state.Running() {
		return nil, ErrRunInProgress
	}
	if s.draft == nil {
		return nil, ErrNoDraft
	}
	return s.draft, nil
}

// Rename sets the draft name. Empty names are allowed while editing.
func (s *Session) Rename(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}
	draft.Name = name
	return nil
}

// AddStep appends a CLICK step targeting the directory's first element, if any.
func (s *Session) AddStep(ctx context.Context) (models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return models.Step{}, err
	}

	step := models.Step{ID: s.newID(), Operation: models.OpClick}
	if s.dir != nil {
		elements, err := s.dir.ListElements(ctx)
		if err != nil {
			s.logger.Warn("failed to list elements for default target", "error", err)
		} else if len(elements) > 0 {
			step.TargetElementID = elements[0].ID
		}
	}
	draft.Steps = append(draft.Steps, step)
	return step, nil
}

// UpdateStep applies edits to the step with the given id. Unknown ids leave
// the draft unchanged.
func (s *Session) UpdateStep(id string, edits ...StepEdit) error {
	for _, e := range edits {
		if err := e.validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}

	for i := range draft.Steps {
		if draft.Steps[i].ID != id {
			continue
		}
		steps := append([]models.Step(nil), draft.Steps...)
		for _, e := range edits {
			e.apply(&steps[i])
		}
		draft.Steps = steps
		return nil
	}
	return nil
}

// RemoveStep deletes the step with the given id. Unknown ids are ignored.
func (s *Session) RemoveStep(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}

	steps := make([]models.Step, 0, len(draft.Steps))
	for _, step := range draft.Steps {
		if step.ID != id {
			steps = append(steps, step)
		}
	}
	draft.Steps = steps
	return nil
}

// MoveStep moves the step at from to position to in a single reorder.
func (s *Session) MoveStep(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}
	if !inRange(from, len(draft.Steps)) || !inRange(to, len(draft.Steps)) {
		return fmt.Errorf("%w: %d -> %d", ErrIndexOutOfRange, from, to)
	}
	draft.Steps = Reorder(draft.Steps, from, to)
	return nil
}

// BeginDrag marks the step at index as being dragged.
func (s *Session) BeginDrag(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}
	if !inRange(index, len(draft.Steps)) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.dragIndex = index
	return nil
}

// DragOver moves the dragged step to index and keeps tracking it there.
// Repeating the same call is a no-op.
func (s *Session) DragOver(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.editable()
	if err != nil {
		return err
	}
	if s.dragIndex < 0 {
		return ErrNotDragging
	}
	if !inRange(index, len(draft.Steps)) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if index == s.dragIndex {
		return nil
	}
	draft.Steps = Reorder(draft.Steps, s.dragIndex, index)
	s.dragIndex = index
	return nil
}

// EndDrag releases the dragged marker without reordering.
func (s *Session) EndDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragIndex = -1
}

// SetMode selects the runner for the next run.
func (s *Session) SetMode(mode RunMode) error {
	if _, err := ParseRunMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running() {
		return ErrRunInProgress
	}
	s.mode = mode
	return nil
}

// Save writes the draft to the store, replacing the committed copy with the
// same id or appending it. It is the only way committed state changes.
func (s *Session) Save(ctx context.Context) (models.Workflow, error) {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return models.Workflow{}, ErrNoDraft
	}
	draft := s.draft.Clone()
	s.mu.Unlock()

	if err := s.store.UpsertWorkflow(ctx, &draft); err != nil {
		return models.Workflow{}, fmt.Errorf("failed to save workflow %s: %w", draft.ID, err)
	}
	s.logger.Info("workflow saved", "workflow_id", draft.ID, "steps", len(draft.Steps))
	return draft, nil
}

// Run starts a run of the draft in the selected mode. The returned channel
// is closed once the run reached its terminal state. The run is detached
// from ctx cancellation: once started it always completes.
func (s *Session) Run(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running() {
		return nil, ErrRunInProgress
	}
	if s.draft == nil {
		return nil, ErrNoDraft
	}

	wf := s.draft.Clone()
	mode := s.mode
	s.draft.LastRunStatus = models.RunStatusPending
	s.dragIndex = -1
	s.log.retire()
	s.log = NewExecutionLog()
	s.transition(mode.entryState())

	done := make(chan struct{})
	s.done = done
	log := s.log

	s.logger.Info("run started", "workflow_id", wf.ID, "mode", mode, "steps", len(wf.Steps))
	go s.execute(context.WithoutCancel(ctx), wf, mode, log, done)
	return done, nil
}

// Wait blocks until the current run, if any, has completed.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Session) execute(ctx context.Context, wf models.Workflow, mode RunMode, log *ExecutionLog, done chan struct{}) {
	defer close(done)
	start := s.now()

	var status models.RunStatus
	if mode == ModeReal {
		status = s.runRemote(ctx, wf, log)
	} else {
		status = s.simulator.Run(ctx, wf, log)
	}

	s.finish(wf.ID, status, log)
	s.metrics.recordRun(ctx, mode, string(status), len(wf.Steps), s.now().Sub(start))
}

// runRemote dispatches wf and falls back to a full simulation when no
// usable response is obtained.
func (s *Session) runRemote(ctx context.Context, wf models.Workflow, log *ExecutionLog) models.RunStatus {
	status, err := s.dispatcher.Dispatch(ctx, wf, log)
	if err == nil {
		return status
	}

	s.logger.Warn("remote dispatch failed, falling back to simulation", "workflow_id", wf.ID, "error", err)
	s.mu.Lock()
	s.transition(StateRunningFallback)
	s.mu.Unlock()
	s.metrics.recordFallback(ctx)

	log.Append(s.dispatcher.fallbackNotice(err, s.grace)...)
	sleep(s.grace)
	return s.simulator.Run(ctx, wf, log)
}

// finish enters DONE, records the outcome on the draft and returns to IDLE.
func (s *Session) finish(workflowID string, status models.RunStatus, log *ExecutionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transition(StateDone)
	if s.draft != nil && s.draft.ID == workflowID {
		ranAt := s.now()
		s.draft.LastRunStatus = status
		s.draft.LastRunDate = &ranAt
	}
	log.Finish(status)
	s.transition(StateIdle)
	s.logger.Info("run finished", "workflow_id", workflowID, "status", status)
}

// transition moves the state machine. Callers hold s.mu.
func (s *Session) transition(to RunState) {
	from := s.state
	if !validTransition(from, to) {
		s.logger.Error("invalid run state transition", "from", from, "to", to)
	}
	s.state = to
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
