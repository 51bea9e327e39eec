package relay

import (
	"time"

	"mqrelay/pkg/transport"
)

// Forwarder delivers one payload to the downstream receiver topic.
type Forwarder func(payload []byte) error

// Strategy is one fault-tolerance policy wrapping the relay. The three
// implementations are alternatives around the same egress forward, not
// layers composed together.
type Strategy interface {
	// OnMessage handles one inbound payload. Errors are logged at the loop
	// boundary; they never stop the node.
	OnMessage(payload []byte) error
	// Tick runs the strategy's periodic maintenance: retry draining, health
	// sweeps, or the leader-failure heuristic.
	Tick(now time.Time)
}

// EgressForwarder builds a Forwarder publishing to the egress topic at the
// given QoS. Transport faults come back as DeliveryError.
func EgressForwarder(pub transport.Publisher, topic string, qos byte) Forwarder {
	return func(payload []byte) error {
		if err := pub.Publish(topic, qos, payload); err != nil {
			return &DeliveryError{Topic: topic, Err: err}
		}
		return nil
	}
}
