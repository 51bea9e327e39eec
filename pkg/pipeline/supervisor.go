package pipeline

// Supervisor replaces unhealthy stages during a health sweep.
type Supervisor interface {
	// Restart returns the stage to run in place of an unhealthy one.
	Restart(stage Stage) Stage
}

// StageFactory constructs a fresh stage instance.
type StageFactory func() Stage

// FactorySupervisor rebuilds unhealthy stages from registered factories,
// giving each replacement a clean state. Stages with no registered factory
// are returned unchanged.
type FactorySupervisor struct {
	factories map[string]StageFactory
}

// NewFactorySupervisor creates a supervisor with no registered factories.
func NewFactorySupervisor() *FactorySupervisor {
	return &FactorySupervisor{factories: make(map[string]StageFactory)}
}

// Register installs the factory used to rebuild the named stage.
func (s *FactorySupervisor) Register(name string, factory StageFactory) {
	s.factories[name] = factory
}

func (s *FactorySupervisor) Restart(stage Stage) Stage {
	if factory, ok := s.factories[stage.Name()]; ok {
		return factory()
	}
	return stage
}

// IdentitySupervisor hands back the same instance unchanged. It performs no
// recovery and exists for comparison runs against the factory supervisor.
type IdentitySupervisor struct{}

func (IdentitySupervisor) Restart(stage Stage) Stage { return stage }
