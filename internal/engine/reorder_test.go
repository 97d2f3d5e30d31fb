package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

func stepsNamed(ids ...string) []models.Step {
	steps := make([]models.Step, len(ids))
	for i, id := range ids {
		steps[i] = models.Step{ID: id, Operation: models.OpClick}
	}
	return steps
}

func stepIDs(steps []models.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"B", "C", "A", "D"}},
		{"backward", 2, 0, []string{"C", "A", "B", "D"}},
		{"to end", 0, 3, []string{"B", "C", "D", "A"}},
		{"from end", 3, 1, []string{"A", "D", "B", "C"}},
		{"adjacent", 1, 2, []string{"A", "C", "B", "D"}},
		{"identity", 2, 2, []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := stepsNamed("A", "B", "C", "D")
			got := Reorder(in, tt.from, tt.to)
			assert.Equal(t, tt.want, stepIDs(got))
			assert.Equal(t, []string{"A", "B", "C", "D"}, stepIDs(in), "input must not be modified")
		})
	}
}

func TestReorder_IsPermutation(t *testing.T) {
	in := stepsNamed("A", "B", "C", "D", "E")
	for from := range in {
		for to := range in {
			got := Reorder(in, from, to)
			assert.Len(t, got, len(in))
			assert.ElementsMatch(t, stepIDs(in), stepIDs(got), "from=%d to=%d", from, to)
			assert.Equal(t, in[from].ID, got[to].ID, "moved step lands at destination")
		}
	}
}

func TestReorder_TrackingIsIdempotent(t *testing.T) {
	steps := stepsNamed("A", "B", "C", "D")
	from := 0
	for _, to := range []int{1, 1, 2, 2, 2} {
		steps = Reorder(steps, from, to)
		from = to
	}
	assert.Equal(t, []string{"B", "C", "A", "D"}, stepIDs(steps))
}

func TestReorder_PanicsOutOfRange(t *testing.T) {
	in := stepsNamed("A", "B")
	assert.Panics(t, func() { Reorder(in, -1, 0) })
	assert.Panics(t, func() { Reorder(in, 0, 2) })
	assert.Panics(t, func() { Reorder(nil, 0, 0) })
}
