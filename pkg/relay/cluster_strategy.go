package relay

import (
	"time"

	"mqrelay/pkg/cluster"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
)

// ClusterStrategy hands each payload to the cluster coordinator: the leader
// processes and publishes downstream, a follower forwards to its leader. The
// periodic tick drives the leader-failure heuristic.
type ClusterStrategy struct {
	node    *cluster.Node
	forward Forwarder
	log     *logging.Logger
	metrics *metrics.Relay
}

// NewClusterStrategy wires the coordinator and the egress forward.
func NewClusterStrategy(node *cluster.Node, forward Forwarder, log *logging.Logger, m *metrics.Relay) *ClusterStrategy {
	return &ClusterStrategy{
		node:    node,
		forward: forward,
		log:     log,
		metrics: m,
	}
}

func (s *ClusterStrategy) OnMessage(payload []byte) error {
	out, forward, err := s.node.HandleMessage(payload)
	if err != nil {
		s.metrics.Failed.Inc()
		return err
	}
	if !forward {
		return nil
	}

	if err := s.forward(out); err != nil {
		s.metrics.Failed.Inc()
		return err
	}
	s.metrics.Relayed.Inc()
	return nil
}

func (s *ClusterStrategy) Tick(_ time.Time) {
	if s.node.Tick() {
		s.metrics.Elections.Inc()
	}
}
