package cluster

// Role indicates the node's cluster role.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

// Config controls one relay node's view of the cluster. Membership is fixed
// at startup; there is no join/leave.
type Config struct {
	// NodeID is this process's ID. Must be unique within the cluster.
	NodeID string
	// SeedID is the node configured to start as leader.
	SeedID string
	// Peers is the full, ordered member list, including this node.
	Peers []string
	// FailureCheckEvery is the number of poll cycles between a follower's
	// leader-failure checks.
	FailureCheckEvery int
}

func (c Config) withDefaults() Config {
	res := c
	if res.FailureCheckEvery <= 0 {
		res.FailureCheckEvery = 10
	}
	return res
}

// CoordinationError reports that the leader could not be reached. No code
// path returns it yet: follower-to-leader forwarding is fire-and-forget and
// delivery failures surface as transport errors. It is declared so callers
// have a stable type to match once forwarding grows an acknowledgement.
type CoordinationError struct {
	Leader string
	Reason string
}

func (e *CoordinationError) Error() string {
	return "leader " + e.Leader + " unreachable: " + e.Reason
}
