package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// Log lines written by the simulated runner.
const (
	SimulationHeader    = "--- STARTING SIMULATION MODE ---"
	SimulationInit      = "Initializing virtual environment..."
	SimulationStepOK    = "  -> Success"
	SimulationPassed    = "Simulation Finished: PASSED"
	UnknownElementLabel = "Unknown Element"
)

// SimulatedRunner interprets steps locally without a browser. It never
// fails a step.
type SimulatedRunner struct {
	dir         ElementDirectory
	stepDelay   time.Duration
	settleDelay time.Duration
	logger      Logger
}

// Run writes the simulation trace of wf to log and returns SUCCESS. Each
// step's delay starts only after the previous step's lines are appended.
func (r *SimulatedRunner) Run(ctx context.Context, wf models.Workflow, log *ExecutionLog) models.RunStatus {
	log.Append(SimulationHeader, SimulationInit)

	for i, step := range wf.Steps {
		el := resolveElement(ctx, r.dir, step.TargetElementID, r.logger)
		sleep(r.stepDelay)
		log.Append(describeStep(i, step, el), SimulationStepOK)
	}

	sleep(r.settleDelay)
	log.Append(SimulationPassed)
	return models.RunStatusSuccess
}

// describeStep renders the summary line of the i-th step.
func describeStep(i int, step models.Step, el *models.Element) string {
	line := fmt.Sprintf("[STEP %d] %s", i+1, step.Operation.Label())

	switch step.Operation {
	case models.OpOpenURL:
		line += " -> " + step.Value
	case models.OpWait, models.OpConfirmModal:
	default:
		name := UnknownElementLabel
		if el != nil {
			name = el.Name
		}
		line += ` on "` + name + `"`
	}

	if step.Value != "" && step.Operation != models.OpOpenURL {
		line += ` with value: "` + step.Value + `"`
	}
	return line
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
