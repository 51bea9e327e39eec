package pipeline

import "fmt"

// ValidationError reports a payload missing required fields or failing to
// parse. It is terminal for that message: the relay drops it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ProcessingError reports a stage fault during pipeline traversal. It is
// terminal for that message under the pipeline strategy.
type ProcessingError struct {
	Stage  string
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Reason)
}
