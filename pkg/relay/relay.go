// Package relay drives the relay node's polling loop: one bounded-wait
// ingress receive, strategy dispatch, periodic maintenance, then a short
// sleep, repeated until shutdown. Messages are handled strictly one at a
// time; that sequential schedule is what the ordering guarantees rest on.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/transport"
)

// Relay is one relay node's main loop.
type Relay struct {
	consumer transport.Consumer
	strategy Strategy
	interval time.Duration
	sleep    func(time.Duration)
	now      func() time.Time
	log      *logging.Logger
	metrics  *metrics.Relay
}

// Option customises loop behaviour.
type Option func(*Relay)

// WithSleepFunc overrides the sleep between iterations. Used in tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(r *Relay) {
		r.sleep = fn
	}
}

// WithClock overrides the maintenance time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

// New creates a relay polling at the given interval.
func New(consumer transport.Consumer, strategy Strategy, interval time.Duration, log *logging.Logger, m *metrics.Relay, opts ...Option) *Relay {
	r := &Relay{
		consumer: consumer,
		strategy: strategy,
		interval: interval,
		sleep:    time.Sleep,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. Per-message errors are logged
// and never stop the node; there is no fatal-error path inside the loop.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("relay loop started", zap.Duration("poll_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay loop stopped")
			return nil
		default:
		}

		select {
		case msg := <-r.consumer.Messages():
			r.metrics.Received.Inc()
			if err := r.strategy.OnMessage(msg.Payload); err != nil {
				r.log.Warn("message handling failed",
					zap.String("topic", msg.Topic),
					zap.Error(err))
			}
		default:
		}

		r.strategy.Tick(r.now())
		r.sleep(r.interval)
	}
}
