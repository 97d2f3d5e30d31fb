package engine

import (
	"fmt"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// Reorder returns a new sequence equal to steps with the element at from
// removed and reinserted at to. The input is never modified. Both indices
// must lie in [0, len(steps)); Reorder panics otherwise.
func Reorder(steps []models.Step, from, to int) []models.Step {
	n := len(steps)
	if from < 0 || from >= n || to < 0 || to >= n {
		panic(fmt.Sprintf("engine: reorder index out of range [%d -> %d] with length %d", from, to, n))
	}
	if from == to {
		return steps
	}

	out := make([]models.Step, 0, n)
	moved := steps[from]
	for i, s := range steps {
		if i == from {
			continue
		}
		if len(out) == to {
			out = append(out, moved)
		}
		out = append(out, s)
	}
	if len(out) < n {
		out = append(out, moved)
	}
	return out
}
