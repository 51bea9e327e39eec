package sensor

import (
	"math/rand"
	"time"
)

// FailureMode controls how the generator degrades its output to exercise the
// relay's fault handling.
type FailureMode string

const (
	// ModeNone publishes clean readings at the base rate.
	ModeNone FailureMode = "none"
	// ModeIntermittent marks a fraction of readings with a forced error
	// status.
	ModeIntermittent FailureMode = "intermittent"
	// ModeComplete stops publishing entirely.
	ModeComplete FailureMode = "complete"
	// ModeOverload publishes as fast as the overload interval allows.
	ModeOverload FailureMode = "overload"
)

// FailureParams tunes the failure modes.
type FailureParams struct {
	// IntermittentRate is the fraction of readings forced into error state.
	IntermittentRate float64
	// OverloadInterval is the inter-message delay under overload.
	OverloadInterval time.Duration
	// BaseInterval is the inter-message delay otherwise.
	BaseInterval time.Duration
}

// DefaultFailureParams mirrors the standard simulation settings.
func DefaultFailureParams() FailureParams {
	return FailureParams{
		IntermittentRate: 0.3,
		OverloadInterval: time.Millisecond,
		BaseInterval:     time.Second,
	}
}

// ApplyMode degrades a reading according to the mode. Returns the reading and
// whether it should be published at all.
func ApplyMode(r Reading, mode FailureMode, params FailureParams, rng *rand.Rand) (Reading, bool) {
	switch mode {
	case ModeComplete:
		return r, false
	case ModeIntermittent:
		if rng.Float64() < params.IntermittentRate {
			r.Status = "forced_error"
		}
		return r, true
	default:
		return r, true
	}
}

// Interval returns the publish delay for the mode.
func (p FailureParams) Interval(mode FailureMode) time.Duration {
	if mode == ModeOverload {
		return p.OverloadInterval
	}
	return p.BaseInterval
}
