package relay

import (
	"time"

	"go.uber.org/zap"

	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/pipeline"
)

// PipelineStrategy runs every payload through the processing pipeline and
// fails fast: a stage error drops the message, with no requeue. The periodic
// tick sweeps stage health and lets the supervisor replace unhealthy stages.
type PipelineStrategy struct {
	pipe    *pipeline.Pipeline
	sup     pipeline.Supervisor
	forward Forwarder
	log     *logging.Logger
	metrics *metrics.Relay
}

// NewPipelineStrategy wires the pipeline, its supervisor, and the egress
// forward.
func NewPipelineStrategy(pipe *pipeline.Pipeline, sup pipeline.Supervisor, forward Forwarder, log *logging.Logger, m *metrics.Relay) *PipelineStrategy {
	return &PipelineStrategy{
		pipe:    pipe,
		sup:     sup,
		forward: forward,
		log:     log,
		metrics: m,
	}
}

func (s *PipelineStrategy) OnMessage(payload []byte) error {
	out, err := s.pipe.Run(payload)
	if err != nil {
		s.metrics.Dropped.Inc()
		return err
	}

	if err := s.forward(out); err != nil {
		s.metrics.Failed.Inc()
		return err
	}

	s.metrics.Relayed.Inc()
	return nil
}

func (s *PipelineStrategy) Tick(_ time.Time) {
	for _, name := range s.pipe.HealthSweep(s.sup) {
		s.log.Warn("unhealthy stage replaced", zap.String("stage", name))
	}
}
