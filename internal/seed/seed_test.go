package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

func TestDefault(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	require.Len(t, f.Elements, 3)
	assert.Equal(t, "#username", f.Elements[0].Locator)
	assert.Equal(t, `//button[@type="submit"]`, f.Elements[2].Locator)
	require.Len(t, f.Workflows, 1)
	assert.Equal(t, "Standard Login Flow", f.Workflows[0].Name)
	assert.Len(t, f.Workflows[0].Steps, 5)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	f, err := Default()
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, Apply(ctx, store, f, now, logging.NewNop()))

	elements, err := store.ListElements(ctx)
	require.NoError(t, err)
	require.Len(t, elements, 3)
	assert.Equal(t, models.LocatorXPath, elements[2].LocatorType)

	wf, err := store.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, wf.LastRunStatus)
	require.NotNil(t, wf.LastRunDate)
	assert.True(t, now.Equal(*wf.LastRunDate))
	assert.Equal(t, models.Step{ID: "s1", Operation: models.OpInput, TargetElementID: "1", Value: "admin"}, wf.Steps[1])
	assert.Equal(t, "", wf.Steps[3].Value)
}

func TestApply_KeepsExistingRecords(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertWorkflow(ctx, &models.Workflow{ID: "w1", Name: "Edited", LastRunStatus: models.RunStatusNone}))
	f, err := Default()
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, store, f, time.Now(), logging.NewNop()))
	require.NoError(t, Apply(ctx, store, f, time.Now(), logging.NewNop()))

	wf, err := store.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", wf.Name)
	elements, err := store.ListElements(ctx)
	require.NoError(t, err)
	assert.Len(t, elements, 3)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "elements: ["},
		{"missing locator", "elements:\n  - {id: a, name: A, locatorType: ID}\n"},
		{"bad locator type", "elements:\n  - {id: a, name: A, locator: x, locatorType: TEXT}\n"},
		{"bad operation", "workflows:\n  - id: w\n    steps:\n      - {id: s, operation: HOVER}\n"},
		{"workflow without id", "workflows:\n  - name: nameless\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
