// Package cluster assigns a leader role among relay nodes and routes
// processing responsibility to the leader.
//
// The role assignment is a best-effort liveness hint, not consensus: each
// node computes its role locally with no message exchange, so two nodes
// detecting a failure concurrently can both conclude they are leader. There
// are no terms, epochs, or quorums. Deployments that need a real guarantee
// of a single leader must put a coordination service in front of this.
package cluster

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"mqrelay/pkg/logging"
)

// ProcessFunc performs the leader's authoritative processing of a payload.
type ProcessFunc func(payload []byte) ([]byte, error)

// Node is one relay node's coordinator. It decides, per message, whether
// this node processes it (leader) or hands it to the leader (follower), and
// runs the periodic leader-failure heuristic.
type Node struct {
	mu       sync.Mutex
	cfg      Config
	role     Role
	leaderID string
	cycles   int
	process  ProcessFunc
	notifier Notifier
	log      *logging.Logger
}

// NewNode creates a coordinator. The node starts as leader iff its ID equals
// the configured seed ID.
func NewNode(cfg Config, process ProcessFunc, notifier Notifier, log *logging.Logger) *Node {
	cfg = cfg.withDefaults()
	role := RoleFollower
	if cfg.NodeID == cfg.SeedID {
		role = RoleLeader
	}
	return &Node{
		cfg:      cfg,
		role:     role,
		leaderID: cfg.SeedID,
		process:  process,
		notifier: notifier,
		log:      log,
	}
}

// Role returns the node's current role.
func (n *Node) Role() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

// LeaderID returns this node's current view of who leads.
func (n *Node) LeaderID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderID
}

// HandleMessage routes one inbound payload. A leader processes it, sends a
// replication notice to every peer, and returns the processed payload with
// forward=true so the caller publishes it downstream. A follower hands the
// raw payload to its leader and returns forward=false; nothing goes
// downstream from a follower.
func (n *Node) HandleMessage(payload []byte) (out []byte, forward bool, err error) {
	n.mu.Lock()
	role := n.role
	leaderID := n.leaderID
	n.mu.Unlock()

	if role != RoleLeader {
		n.log.Debug("forwarding to leader",
			zap.String("node", n.cfg.NodeID),
			zap.String("leader", leaderID))
		if err := n.notifier.ForwardToLeader(leaderID, payload); err != nil {
			return nil, false, fmt.Errorf("forward to leader %s: %w", leaderID, err)
		}
		return nil, false, nil
	}

	out, err = n.process(payload)
	if err != nil {
		return nil, false, fmt.Errorf("leader processing: %w", err)
	}

	// Replication is fire-and-forget: a peer missing a notice does not fail
	// the message, it only loses the copy.
	for _, peer := range n.cfg.Peers {
		if peer == n.cfg.NodeID {
			continue
		}
		if rerr := n.notifier.Replicate(n.cfg.NodeID, peer, out); rerr != nil {
			n.log.Warn("replication notice failed",
				zap.String("peer", peer),
				zap.Error(rerr))
		}
	}
	return out, true, nil
}

// Tick advances the leader-failure heuristic by one poll cycle. Every
// FailureCheckEvery cycles a follower assumes the leader has failed and runs
// an election. This is a fixed-cadence synthetic trigger, not a heartbeat
// timeout. Returns true when this node just became leader.
func (n *Node) Tick() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role == RoleLeader {
		return false
	}
	n.cycles++
	if n.cycles%n.cfg.FailureCheckEvery != 0 {
		return false
	}

	n.log.Info("leader failure assumed, starting election",
		zap.String("node", n.cfg.NodeID),
		zap.String("old_leader", n.leaderID))
	return n.electLocked()
}

// electLocked applies the fixed-order policy: walk the peer list in its
// static order, skip the original seed, and the first remaining peer that
// matches this node's ID becomes leader. Every node evaluates this
// independently, so the winner is deterministic per node but unverified
// across nodes.
func (n *Node) electLocked() bool {
	for _, peer := range n.cfg.Peers {
		if peer == n.cfg.SeedID {
			continue
		}
		if peer == n.cfg.NodeID {
			n.role = RoleLeader
			n.leaderID = peer
			n.log.Info("elected as leader", zap.String("node", n.cfg.NodeID))
			return true
		}
	}
	return false
}
