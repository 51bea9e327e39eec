package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqrelay/pkg/breaker"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/retrybuf"
)

// flakyDownstream simulates a receiver that can be switched on and off.
type flakyDownstream struct {
	failing   bool
	delivered []string
	attempts  int
}

func (d *flakyDownstream) forward(payload []byte) error {
	d.attempts++
	if d.failing {
		return &DeliveryError{Topic: "iot/data", Err: errors.New("refused")}
	}
	d.delivered = append(d.delivered, string(payload))
	return nil
}

type breakerFixture struct {
	strategy *BreakerStrategy
	breaker  *breaker.Breaker
	buffer   *retrybuf.Buffer
	down     *flakyDownstream
	clock    *manualClock
}

type manualClock struct {
	t time.Time
}

func (c *manualClock) Now() time.Time { return c.t }

func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreakerFixture(t *testing.T) *breakerFixture {
	t.Helper()
	clock := &manualClock{t: time.Unix(1700000000, 0)}
	b := breaker.New(breaker.DefaultSettings(), breaker.WithClock(clock.Now))
	buf := retrybuf.New(5*time.Second, 0)
	down := &flakyDownstream{}
	s := NewBreakerStrategy(b, buf, down.forward, logging.NewNop(), metrics.NewRelay())
	return &breakerFixture{strategy: s, breaker: b, buffer: buf, down: down, clock: clock}
}

func TestBreakerStrategyRelaysWhenHealthy(t *testing.T) {
	f := newBreakerFixture(t)

	require.NoError(t, f.strategy.OnMessage([]byte("m1")))
	require.NoError(t, f.strategy.OnMessage([]byte("m2")))

	assert.Equal(t, []string{"m1", "m2"}, f.down.delivered)
	assert.Equal(t, 0, f.buffer.Len())
}

func TestBreakerStrategyBuffersFailures(t *testing.T) {
	f := newBreakerFixture(t)
	f.down.failing = true

	err := f.strategy.OnMessage([]byte("m1"))
	require.Error(t, err)

	var derr *DeliveryError
	assert.ErrorAs(t, err, &derr)
	assert.Equal(t, 1, f.buffer.Len(), "failed payload is buffered")
	assert.Equal(t, breaker.StateClosed, f.breaker.State())
}

func TestBreakerStrategyQueuesWithoutAttemptWhenOpen(t *testing.T) {
	f := newBreakerFixture(t)
	f.down.failing = true

	for i := 0; i < 3; i++ {
		f.strategy.OnMessage([]byte("fail"))
	}
	require.Equal(t, breaker.StateOpen, f.breaker.State())

	attempts := f.down.attempts
	require.NoError(t, f.strategy.OnMessage([]byte("queued")))
	assert.Equal(t, attempts, f.down.attempts, "open gate must not touch the downstream")
	assert.Equal(t, 4, f.buffer.Len())
}

func TestBreakerStrategyDrainsOnTick(t *testing.T) {
	f := newBreakerFixture(t)
	f.down.failing = true

	f.strategy.OnMessage([]byte("m1"))
	f.strategy.OnMessage([]byte("m2"))
	require.Equal(t, 2, f.buffer.Len())

	// Downstream recovers; the next drain tick re-delivers in order.
	f.down.failing = false
	f.clock.Advance(5 * time.Second)
	f.strategy.Tick(f.clock.Now())

	assert.Equal(t, []string{"m1", "m2"}, f.down.delivered)
	assert.Equal(t, 0, f.buffer.Len())
}

func TestBreakerStrategyDrainHaltsOnContinuedFailure(t *testing.T) {
	f := newBreakerFixture(t)
	f.down.failing = true

	f.strategy.OnMessage([]byte("m1"))
	f.strategy.OnMessage([]byte("m2"))

	f.clock.Advance(5 * time.Second)
	f.strategy.Tick(f.clock.Now())

	assert.Equal(t, 2, f.buffer.Len(), "still-failing head stays buffered, order intact")
}

// TestBreakerEndToEnd walks the documented failure/recovery sequence: five
// failed deliveries followed by successes.
func TestBreakerEndToEnd(t *testing.T) {
	f := newBreakerFixture(t)
	f.down.failing = true

	// Failures 1-2: closed, each attempt hits the downstream.
	f.strategy.OnMessage([]byte("f1"))
	f.strategy.OnMessage([]byte("f2"))
	assert.Equal(t, breaker.StateClosed, f.breaker.State())
	assert.Equal(t, 2, f.down.attempts)

	// Failure 3 opens the gate.
	f.strategy.OnMessage([]byte("f3"))
	assert.Equal(t, breaker.StateOpen, f.breaker.State())

	// Failures 4-5 are queued without an attempt.
	f.strategy.OnMessage([]byte("f4"))
	f.strategy.OnMessage([]byte("f5"))
	assert.Equal(t, 3, f.down.attempts)
	assert.Equal(t, 5, f.buffer.Len())

	// Admission stays refused until the reset timeout elapses.
	f.clock.Advance(10 * time.Second)
	f.strategy.OnMessage([]byte("still-queued"))
	assert.Equal(t, 3, f.down.attempts)

	// Past the timeout the downstream has recovered: deliveries resume and
	// two successes zero the failure tally.
	f.down.failing = false
	f.clock.Advance(time.Second)

	require.NoError(t, f.strategy.OnMessage([]byte("s1")))
	assert.Equal(t, breaker.StateClosed, f.breaker.State())
	assert.NotZero(t, f.breaker.Failures(), "one success is not enough to forgive the failures")

	require.NoError(t, f.strategy.OnMessage([]byte("s2")))
	assert.Zero(t, f.breaker.Failures())

	// The queued backlog drains in arrival order on the next tick.
	f.strategy.Tick(f.clock.Now())
	assert.Equal(t, []string{"s1", "s2", "f1", "f2", "f3", "f4", "f5", "still-queued"}, f.down.delivered)
}
