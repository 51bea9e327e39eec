package pipeline

// Stage is one transformation or validation step in the processing sequence.
type Stage interface {
	// Name identifies the stage in logs and supervisor lookups.
	Name() string
	// Process transforms the payload. Any error aborts the whole traversal.
	Process(input []byte) ([]byte, error)
	// Healthy reports whether the stage is fit to keep processing. An
	// unhealthy stage is replaced by the supervisor on the next sweep.
	Healthy() bool
}

// FaultInjector decides when a stage should fail or report as unhealthy.
// Injecting the strategy keeps fault simulation deterministic per instance
// instead of leaking call-count state across stages.
type FaultInjector interface {
	// ProcessFault reports whether the next Process call should fail.
	ProcessFault() bool
	// HealthFault reports whether the next health query should be unhealthy.
	HealthFault() bool
}

// NoFaults never injects anything. The default for production stages.
type NoFaults struct{}

func (NoFaults) ProcessFault() bool { return false }

func (NoFaults) HealthFault() bool { return false }

// CadenceFaults reports a health fault on every nth health query. It is a
// synthetic fault generator for exercising the supervisor, not a real
// liveness signal; the counter is per-instance.
type CadenceFaults struct {
	Every int
	count int
}

func (c *CadenceFaults) ProcessFault() bool { return false }

func (c *CadenceFaults) HealthFault() bool {
	if c.Every <= 0 {
		return false
	}
	c.count++
	return c.count%c.Every == 0
}
