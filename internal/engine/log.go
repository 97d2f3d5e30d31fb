package engine

import (
	"slices"
	"sync"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ExecutionLog is the append-only output of a single run.
type ExecutionLog struct {
	mu       sync.RWMutex
	lines    []string
	status   models.RunStatus
	finished bool
	changed  chan struct{}
}

// LogSnapshot is a point-in-time copy of an ExecutionLog.
type LogSnapshot struct {
	Lines    []string         `json:"lines"`
	Status   models.RunStatus `json:"status,omitempty"`
	Finished bool             `json:"finished"`
}

// NewExecutionLog creates an empty log.
func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{lines: []string{}, changed: make(chan struct{})}
}

// Append adds lines at the end of the log.
func (l *ExecutionLog) Append(lines ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.lines = append(l.lines, lines...)
	l.notify()
}

// Finish records the terminal status. Later appends are ignored.
func (l *ExecutionLog) Finish(status models.RunStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.status = status
	l.finished = true
	l.notify()
}

// retire closes a log that is being replaced without ever finishing, so
// followers stop waiting on it.
func (l *ExecutionLog) retire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.finished = true
	l.notify()
}

// notify wakes all followers. Callers hold l.mu.
func (l *ExecutionLog) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// Snapshot returns a copy of the log.
func (l *ExecutionLog) Snapshot() LogSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LogSnapshot{Lines: slices.Clone(l.lines), Status: l.status, Finished: l.finished}
}

// Since returns the lines after offset, whether the log is finished and a
// channel closed on the next change.
func (l *ExecutionLog) Since(offset int) ([]string, bool, <-chan struct{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	var lines []string
	if offset < len(l.lines) {
		lines = slices.Clone(l.lines[offset:])
	}
	return lines, l.finished, l.changed
}
