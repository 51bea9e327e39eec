package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// TransformationStage enriches a validated reading with a processed marker
// and a server-side timestamp in epoch seconds.
type TransformationStage struct {
	faults FaultInjector
	now    func() time.Time
}

// TransformationOption customises the stage.
type TransformationOption func(*TransformationStage)

// WithFaultInjector installs a fault-injection strategy.
func WithFaultInjector(f FaultInjector) TransformationOption {
	return func(s *TransformationStage) {
		s.faults = f
	}
}

// WithTimestampClock overrides the server timestamp source. Used in tests.
func WithTimestampClock(now func() time.Time) TransformationOption {
	return func(s *TransformationStage) {
		s.now = now
	}
}

// NewTransformationStage creates a stage with no fault injection.
func NewTransformationStage(opts ...TransformationOption) *TransformationStage {
	s := &TransformationStage{
		faults: NoFaults{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransformationStage) Name() string { return "transformation" }

func (s *TransformationStage) Process(input []byte) ([]byte, error) {
	if s.faults.ProcessFault() {
		return nil, &ProcessingError{Stage: s.Name(), Reason: "injected transformation fault"}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(input, &doc); err != nil {
		return nil, &ProcessingError{Stage: s.Name(), Reason: fmt.Sprintf("malformed payload: %v", err)}
	}

	doc["processed"] = true
	doc["server_timestamp"] = s.now().Unix()

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &ProcessingError{Stage: s.Name(), Reason: fmt.Sprintf("re-encode: %v", err)}
	}
	return out, nil
}

func (s *TransformationStage) Healthy() bool {
	return !s.faults.HealthFault()
}
