package pipeline

import (
	"encoding/json"
	"fmt"
)

// RequiredFields are the keys every inbound reading must carry.
var RequiredFields = []string{"device_id", "temperature"}

// ValidationStage rejects malformed payloads before they reach the
// transformation stages. It fails closed: anything that does not parse or is
// missing a required field is an error.
type ValidationStage struct {
	required []string
}

// NewValidationStage creates a stage requiring the standard reading fields.
func NewValidationStage() *ValidationStage {
	return &ValidationStage{required: RequiredFields}
}

func (s *ValidationStage) Name() string { return "validation" }

func (s *ValidationStage) Process(input []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(input, &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed payload: %v", err)}
	}
	for _, field := range s.required {
		if _, ok := doc[field]; !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}
	return input, nil
}

// Healthy always reports true: validation holds no state that can degrade.
func (s *ValidationStage) Healthy() bool { return true }
