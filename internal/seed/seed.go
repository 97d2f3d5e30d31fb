// Package seed loads the starter elements and workflows into a repository.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Info(msg string, args ...any)
}

// Store is the part of the repository the seeder writes to.
type Store interface {
	GetElement(ctx context.Context, id string) (*models.Element, error)
	CreateElement(ctx context.Context, element *models.Element) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	UpsertWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// Fixtures is a set of records to seed.
type Fixtures struct {
	Elements  []elementFixture  `yaml:"elements"`
	Workflows []workflowFixture `yaml:"workflows"`
}

type elementFixture struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Locator     string `yaml:"locator"`
	LocatorType string `yaml:"locatorType"`
	Description string `yaml:"description"`
}

type stepFixture struct {
	ID              string `yaml:"id"`
	Operation       string `yaml:"operation"`
	TargetElementID string `yaml:"targetElementId"`
	Value           string `yaml:"value"`
	Description     string `yaml:"description"`
}

type workflowFixture struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name"`
	LastRunStatus string        `yaml:"lastRunStatus"`
	Steps         []stepFixture `yaml:"steps"`
}

// Default returns the embedded starter fixtures.
func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

// Parse decodes and validates YAML fixtures.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	for _, el := range f.Elements {
		if el.ID == "" || el.Name == "" || el.Locator == "" {
			return nil, fmt.Errorf("element %q: id, name and locator are required", el.ID)
		}
		if !models.LocatorType(el.LocatorType).Valid() {
			return nil, fmt.Errorf("element %q: unknown locator type %q", el.ID, el.LocatorType)
		}
	}
	for _, wf := range f.Workflows {
		if wf.ID == "" {
			return nil, errors.New("workflow without id")
		}
		for _, st := range wf.Steps {
			if !models.Operation(st.Operation).Valid() {
				return nil, fmt.Errorf("workflow %q step %q: unknown operation %q", wf.ID, st.ID, st.Operation)
			}
		}
	}
	return &f, nil
}

// Apply writes the fixtures to store. Records whose id already exists are
// left untouched, so applying twice is harmless. Workflows with a recorded
// status are stamped with now as their last run date.
func Apply(ctx context.Context, store Store, f *Fixtures, now time.Time, logger Logger) error {
	var created int
	for _, ef := range f.Elements {
		_, err := store.GetElement(ctx, ef.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up element %s: %w", ef.ID, err)
		}
		el := models.Element{
			ID:          ef.ID,
			Name:        ef.Name,
			Locator:     ef.Locator,
			LocatorType: models.LocatorType(ef.LocatorType),
			Description: ef.Description,
		}
		if err := store.CreateElement(ctx, &el); err != nil {
			return fmt.Errorf("failed to create element %s: %w", ef.ID, err)
		}
		created++
	}

	for _, wff := range f.Workflows {
		_, err := store.GetWorkflow(ctx, wff.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up workflow %s: %w", wff.ID, err)
		}
		wf := wff.toModel(now)
		if err := store.UpsertWorkflow(ctx, &wf); err != nil {
			return fmt.Errorf("failed to create workflow %s: %w", wff.ID, err)
		}
		created++
	}

	logger.Info("fixtures applied", "created", created,
		"elements", len(f.Elements), "workflows", len(f.Workflows))
	return nil
}

func (wff workflowFixture) toModel(now time.Time) models.Workflow {
	wf := models.Workflow{
		ID:            wff.ID,
		Name:          wff.Name,
		Steps:         make([]models.Step, 0, len(wff.Steps)),
		LastRunStatus: models.RunStatus(wff.LastRunStatus),
	}
	if wf.LastRunStatus == "" {
		wf.LastRunStatus = models.RunStatusNone
	}
	if wf.LastRunStatus != models.RunStatusNone {
		ranAt := now
		wf.LastRunDate = &ranAt
	}
	for _, st := range wff.Steps {
		wf.Steps = append(wf.Steps, models.Step{
			ID:              st.ID,
			Operation:       models.Operation(st.Operation),
			TargetElementID: st.TargetElementID,
			Value:           st.Value,
			Description:     st.Description,
		})
	}
	return wf
}
