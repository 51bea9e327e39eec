package pipeline

import "fmt"

// Pipeline feeds a payload through an ordered stage sequence. The output of
// stage i is the input of stage i+1; the first stage error aborts the whole
// traversal and the message is dropped by the caller (fail-fast, no requeue).
type Pipeline struct {
	stages []Stage
}

// New creates a pipeline over the given stages. Traversal order is fixed at
// construction.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Default returns the standard two-stage pipeline: validation followed by
// transformation with the given fault injector.
func Default(faults FaultInjector) *Pipeline {
	return New(
		NewValidationStage(),
		NewTransformationStage(WithFaultInjector(faults)),
	)
}

// Run traverses the stages in order and returns the final payload.
func (p *Pipeline) Run(input []byte) ([]byte, error) {
	out := input
	for _, stage := range p.stages {
		var err error
		out, err = stage.Process(out)
		if err != nil {
			return nil, fmt.Errorf("pipeline aborted: %w", err)
		}
	}
	return out, nil
}

// HealthSweep queries every stage and swaps any unhealthy one for the
// supervisor's replacement. It runs on the polling cadence, independent of
// message flow, and returns the names of the replaced stages.
func (p *Pipeline) HealthSweep(sup Supervisor) []string {
	var replaced []string
	for i, stage := range p.stages {
		if stage.Healthy() {
			continue
		}
		p.stages[i] = sup.Restart(stage)
		replaced = append(replaced, stage.Name())
	}
	return replaced
}

// Stages returns the current stage sequence.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}
