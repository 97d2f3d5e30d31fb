package models

import (
	"time"
)

// RunStatus is the outcome recorded for the last run of a workflow.
type RunStatus string

const (
	RunStatusNone    RunStatus = "NONE"
	RunStatusPending RunStatus = "PENDING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailure RunStatus = "FAILURE"
)

// Workflow is a named, ordered sequence of steps. Step order is execution order.
type Workflow struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Steps         []Step     `json:"steps"`
	LastRunStatus RunStatus  `json:"lastRunStatus"`
	LastRunDate   *time.Time `json:"lastRunDate,omitempty"`
}

// Clone returns a deep copy so drafts never share step storage with the
// committed copy. The copy always has a non-nil step list.
func (w Workflow) Clone() Workflow {
	c := w
	c.Steps = append(make([]Step, 0, len(w.Steps)), w.Steps...)
	if w.LastRunDate != nil {
		d := *w.LastRunDate
		c.LastRunDate = &d
	}
	return c
}
