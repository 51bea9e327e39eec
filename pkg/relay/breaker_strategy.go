package relay

import (
	"time"

	"go.uber.org/zap"

	"mqrelay/pkg/breaker"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/retrybuf"
)

// BreakerStrategy protects a fragile downstream: deliveries are gated by the
// admission controller and failed payloads wait in the retry buffer, which is
// drained in arrival order on the periodic tick.
type BreakerStrategy struct {
	breaker *breaker.Breaker
	buffer  *retrybuf.Buffer
	forward Forwarder
	log     *logging.Logger
	metrics *metrics.Relay
}

// NewBreakerStrategy wires the gate, the buffer, and the egress forward.
func NewBreakerStrategy(b *breaker.Breaker, buf *retrybuf.Buffer, forward Forwarder, log *logging.Logger, m *metrics.Relay) *BreakerStrategy {
	return &BreakerStrategy{
		breaker: b,
		buffer:  buf,
		forward: forward,
		log:     log,
		metrics: m,
	}
}

func (s *BreakerStrategy) OnMessage(payload []byte) error {
	if !s.breaker.Allow() {
		s.buffer.Enqueue(payload)
		s.log.Debug("circuit open, message buffered",
			zap.Int("buffered", s.buffer.Len()))
		return nil
	}

	if err := s.forward(payload); err != nil {
		s.breaker.RecordFailure()
		s.buffer.Enqueue(payload)
		s.metrics.Failed.Inc()
		if s.breaker.State() == breaker.StateOpen {
			s.metrics.BreakerOpen.Inc()
			s.log.Warn("circuit breaker opened",
				zap.Int("failures", s.breaker.Failures()))
		}
		return err
	}

	s.breaker.RecordSuccess()
	s.metrics.Relayed.Inc()
	return nil
}

// Tick drains the retry buffer. Drain attempts bypass the admission gate:
// the drain cadence itself is the backoff, and a refused head payload simply
// stays put until the next tick.
func (s *BreakerStrategy) Tick(now time.Time) {
	delivered := s.buffer.DrainTick(now, func(payload []byte) bool {
		return s.forward(payload) == nil
	})
	if delivered > 0 {
		s.metrics.Retried.Add(float64(delivered))
		s.log.Info("retried buffered messages",
			zap.Int("delivered", delivered),
			zap.Int("remaining", s.buffer.Len()))
	}
}
