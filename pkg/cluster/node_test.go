package cluster

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqrelay/pkg/logging"
)

// recordingNotifier captures inter-node traffic.
type recordingNotifier struct {
	replicated []string // peers notified
	forwarded  []string // leaders forwarded to
	failWith   error
}

func (r *recordingNotifier) Replicate(from, peer string, payload []byte) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.replicated = append(r.replicated, peer)
	return nil
}

func (r *recordingNotifier) ForwardToLeader(leader string, payload []byte) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.forwarded = append(r.forwarded, leader)
	return nil
}

func threeNodeConfig(id string) Config {
	return Config{
		NodeID:            id,
		SeedID:            "node1",
		Peers:             []string{"node1", "node2", "node3"},
		FailureCheckEvery: 10,
	}
}

func identityProcess(p []byte) ([]byte, error) { return p, nil }

func TestSeedNodeStartsAsLeader(t *testing.T) {
	n := NewNode(threeNodeConfig("node1"), identityProcess, &recordingNotifier{}, logging.NewNop())
	assert.Equal(t, RoleLeader, n.Role())
	assert.Equal(t, "node1", n.LeaderID())
}

func TestNonSeedNodeStartsAsFollower(t *testing.T) {
	n := NewNode(threeNodeConfig("node2"), identityProcess, &recordingNotifier{}, logging.NewNop())
	assert.Equal(t, RoleFollower, n.Role())
	assert.Equal(t, "node1", n.LeaderID())
}

func TestLeaderProcessesAndReplicates(t *testing.T) {
	notifier := &recordingNotifier{}
	processed := false
	process := func(p []byte) ([]byte, error) {
		processed = true
		return append(p, '!'), nil
	}
	n := NewNode(threeNodeConfig("node1"), process, notifier, logging.NewNop())

	out, forward, err := n.HandleMessage([]byte("msg"))
	require.NoError(t, err)
	assert.True(t, forward, "leader output goes downstream")
	assert.Equal(t, []byte("msg!"), out)
	assert.True(t, processed)
	assert.Equal(t, []string{"node2", "node3"}, notifier.replicated, "every peer except self gets a notice")
	assert.Empty(t, notifier.forwarded)
}

func TestFollowerForwardsToLeader(t *testing.T) {
	notifier := &recordingNotifier{}
	n := NewNode(threeNodeConfig("node3"), identityProcess, notifier, logging.NewNop())

	out, forward, err := n.HandleMessage([]byte("msg"))
	require.NoError(t, err)
	assert.False(t, forward, "a follower publishes nothing downstream")
	assert.Nil(t, out)
	assert.Equal(t, []string{"node1"}, notifier.forwarded)
	assert.Empty(t, notifier.replicated)
}

func TestFollowerForwardFailureSurfaces(t *testing.T) {
	notifier := &recordingNotifier{failWith: errors.New("broker down")}
	n := NewNode(threeNodeConfig("node2"), identityProcess, notifier, logging.NewNop())

	_, _, err := n.HandleMessage([]byte("msg"))
	assert.ErrorContains(t, err, "forward to leader node1")
}

func TestReplicationFailureDoesNotFailMessage(t *testing.T) {
	notifier := &recordingNotifier{failWith: errors.New("peer gone")}
	n := NewNode(threeNodeConfig("node1"), identityProcess, notifier, logging.NewNop())

	out, forward, err := n.HandleMessage([]byte("msg"))
	require.NoError(t, err, "replication is fire-and-forget")
	assert.True(t, forward)
	assert.Equal(t, []byte("msg"), out)
}

func TestLeaderProcessingErrorAborts(t *testing.T) {
	process := func([]byte) ([]byte, error) { return nil, errors.New("boom") }
	notifier := &recordingNotifier{}
	n := NewNode(threeNodeConfig("node1"), process, notifier, logging.NewNop())

	_, forward, err := n.HandleMessage([]byte("msg"))
	assert.Error(t, err)
	assert.False(t, forward)
	assert.Empty(t, notifier.replicated, "no replication for a failed payload")
}

func TestFollowerElectsItselfOnCadence(t *testing.T) {
	n := NewNode(threeNodeConfig("node2"), identityProcess, &recordingNotifier{}, logging.NewNop())

	for i := 0; i < 9; i++ {
		assert.False(t, n.Tick())
		assert.Equal(t, RoleFollower, n.Role())
	}

	// The 10th cycle triggers the failure heuristic and the fixed-order
	// election: the seed is skipped and node2 matches itself.
	assert.True(t, n.Tick())
	assert.Equal(t, RoleLeader, n.Role())
	assert.Equal(t, "node2", n.LeaderID())
}

func TestThirdNodeAlsoElectsItself(t *testing.T) {
	// The policy needs no message exchange, so node3 evaluating the same
	// trigger also concludes it is leader. Divergent views are possible and
	// accepted; this test documents the hazard rather than hiding it.
	n := NewNode(threeNodeConfig("node3"), identityProcess, &recordingNotifier{}, logging.NewNop())

	for i := 0; i < 10; i++ {
		n.Tick()
	}
	assert.Equal(t, RoleLeader, n.Role())
}

func TestLeaderNeverRunsElection(t *testing.T) {
	n := NewNode(threeNodeConfig("node1"), identityProcess, &recordingNotifier{}, logging.NewNop())

	for i := 0; i < 50; i++ {
		assert.False(t, n.Tick())
	}
	assert.Equal(t, RoleLeader, n.Role())
}

func TestNewLeaderProcessesSubsequentMessages(t *testing.T) {
	notifier := &recordingNotifier{}
	n := NewNode(threeNodeConfig("node2"), identityProcess, notifier, logging.NewNop())

	for i := 0; i < 10; i++ {
		n.Tick()
	}
	require.Equal(t, RoleLeader, n.Role())

	_, forward, err := n.HandleMessage([]byte("msg"))
	require.NoError(t, err)
	assert.True(t, forward)
	assert.ElementsMatch(t, []string{"node1", "node3"}, notifier.replicated)
}

func TestBrokerNotifierEnvelope(t *testing.T) {
	var gotTopic string
	var gotPayload []byte
	pub := publisherFunc(func(topic string, qos byte, payload []byte) error {
		gotTopic = topic
		gotPayload = payload
		return nil
	})

	notifier := NewBrokerNotifier(pub, 1)
	require.NoError(t, notifier.Replicate("node1", "node2", []byte(`{"device_id":"d1"}`)))

	assert.Equal(t, "cluster/replicate/node2", gotTopic)

	var notice Notice
	require.NoError(t, json.Unmarshal(gotPayload, &notice))
	assert.Equal(t, "node1", notice.Node)
	assert.Equal(t, "node2", notice.Peer)
	assert.JSONEq(t, `{"device_id":"d1"}`, string(notice.Payload))
	assert.NotZero(t, notice.Timestamp)

	require.NoError(t, notifier.ForwardToLeader("node1", []byte("raw")))
	assert.Equal(t, "cluster/leader/node1", gotTopic)
	assert.Equal(t, []byte("raw"), gotPayload)
}

type publisherFunc func(topic string, qos byte, payload []byte) error

func (f publisherFunc) Publish(topic string, qos byte, payload []byte) error {
	return f(topic, qos, payload)
}
