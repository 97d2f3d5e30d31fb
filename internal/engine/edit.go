package engine

import (
	"fmt"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// StepEdit describes a change to exactly one Step attribute.
type StepEdit interface {
	apply(step *models.Step)
	validate() error
}

// SetOperation changes the operation of a step.
type SetOperation struct {
	Operation models.Operation
}

func (e SetOperation) apply(step *models.Step) { step.Operation = e.Operation }

func (e SetOperation) validate() error {
	if !e.Operation.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, e.Operation)
	}
	return nil
}

// SetTarget points a step at an element. An empty ElementID clears the target.
// The reference is not checked against the directory.
type SetTarget struct {
	ElementID string
}

func (e SetTarget) apply(step *models.Step) { step.TargetElementID = e.ElementID }
func (e SetTarget) validate() error         { return nil }

// SetValue changes the step value. An empty Value clears it.
type SetValue struct {
	Value string
}

func (e SetValue) apply(step *models.Step) { step.Value = e.Value }
func (e SetValue) validate() error         { return nil }

// SetDescription changes the free-text note of a step.
type SetDescription struct {
	Description string
}

func (e SetDescription) apply(step *models.Step) { step.Description = e.Description }
func (e SetDescription) validate() error         { return nil }
