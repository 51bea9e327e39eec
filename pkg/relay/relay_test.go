package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqrelay/pkg/cluster"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/pipeline"
	"mqrelay/pkg/transport"
)

func TestRelayLoopRelaysThroughPipeline(t *testing.T) {
	broker := transport.NewMem()
	ingress := broker.Subscribe("iot/input")
	egress := broker.Subscribe("iot/data")

	pipe := pipeline.Default(pipeline.NoFaults{})
	strategy := NewPipelineStrategy(
		pipe,
		pipeline.NewFactorySupervisor(),
		EgressForwarder(broker, "iot/data", 1),
		logging.NewNop(),
		metrics.NewRelay(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	iterations := 0
	r := New(ingress, strategy, time.Millisecond, logging.NewNop(), metrics.NewRelay(),
		WithSleepFunc(func(time.Duration) {
			iterations++
			if iterations > 20 {
				cancel()
			}
		}),
	)

	require.NoError(t, broker.Publish("iot/input", 1, []byte(`{"device_id":"d1","temperature":21}`)))

	require.NoError(t, r.Run(ctx))

	select {
	case msg := <-egress.Messages():
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Payload, &doc))
		assert.Equal(t, true, doc["processed"])
		assert.IsType(t, float64(0), doc["server_timestamp"], "timestamp must be numeric")
	default:
		t.Fatal("expected a relayed message on the egress topic")
	}
}

func TestRelayLoopDropsInvalidPayloadAndKeepsRunning(t *testing.T) {
	broker := transport.NewMem()
	ingress := broker.Subscribe("iot/input")
	egress := broker.Subscribe("iot/data")

	strategy := NewPipelineStrategy(
		pipeline.Default(pipeline.NoFaults{}),
		pipeline.NewFactorySupervisor(),
		EgressForwarder(broker, "iot/data", 1),
		logging.NewNop(),
		metrics.NewRelay(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	iterations := 0
	r := New(ingress, strategy, time.Millisecond, logging.NewNop(), metrics.NewRelay(),
		WithSleepFunc(func(time.Duration) {
			iterations++
			if iterations > 20 {
				cancel()
			}
		}),
	)

	// Missing device_id, then a valid reading: the bad one is dropped and
	// the loop keeps relaying.
	require.NoError(t, broker.Publish("iot/input", 1, []byte(`{"temperature":21}`)))
	require.NoError(t, broker.Publish("iot/input", 1, []byte(`{"device_id":"d2","temperature":22}`)))

	require.NoError(t, r.Run(ctx))

	var relayed []map[string]interface{}
	for {
		select {
		case msg := <-egress.Messages():
			var doc map[string]interface{}
			require.NoError(t, json.Unmarshal(msg.Payload, &doc))
			relayed = append(relayed, doc)
			continue
		default:
		}
		break
	}

	require.Len(t, relayed, 1)
	assert.Equal(t, "d2", relayed[0]["device_id"])
}

func TestClusterStrategyLeaderPublishesDownstream(t *testing.T) {
	broker := transport.NewMem()
	egress := broker.Subscribe("iot/data")
	replica := broker.Subscribe(cluster.ReplicateTopic("node2"))

	node := cluster.NewNode(
		cluster.Config{
			NodeID: "node1",
			SeedID: "node1",
			Peers:  []string{"node1", "node2", "node3"},
		},
		func(p []byte) ([]byte, error) { return p, nil },
		cluster.NewBrokerNotifier(broker, 1),
		logging.NewNop(),
	)

	strategy := NewClusterStrategy(node, EgressForwarder(broker, "iot/data", 1), logging.NewNop(), metrics.NewRelay())

	require.NoError(t, strategy.OnMessage([]byte(`{"device_id":"d1","temperature":21}`)))

	select {
	case msg := <-egress.Messages():
		assert.JSONEq(t, `{"device_id":"d1","temperature":21}`, string(msg.Payload))
	default:
		t.Fatal("leader must publish downstream")
	}

	select {
	case msg := <-replica.Messages():
		var notice cluster.Notice
		require.NoError(t, json.Unmarshal(msg.Payload, &notice))
		assert.Equal(t, "node1", notice.Node)
	default:
		t.Fatal("peers must receive a replication notice")
	}
}

func TestClusterStrategyFollowerForwardsNotDownstream(t *testing.T) {
	broker := transport.NewMem()
	egress := broker.Subscribe("iot/data")
	leaderInbox := broker.Subscribe(cluster.LeaderTopic("node1"))

	node := cluster.NewNode(
		cluster.Config{
			NodeID: "node2",
			SeedID: "node1",
			Peers:  []string{"node1", "node2", "node3"},
		},
		func(p []byte) ([]byte, error) { return p, nil },
		cluster.NewBrokerNotifier(broker, 1),
		logging.NewNop(),
	)

	strategy := NewClusterStrategy(node, EgressForwarder(broker, "iot/data", 1), logging.NewNop(), metrics.NewRelay())

	require.NoError(t, strategy.OnMessage([]byte(`{"device_id":"d1","temperature":21}`)))

	select {
	case <-egress.Messages():
		t.Fatal("a follower must not publish downstream")
	default:
	}

	select {
	case msg := <-leaderInbox.Messages():
		assert.JSONEq(t, `{"device_id":"d1","temperature":21}`, string(msg.Payload))
	default:
		t.Fatal("the payload must reach the leader topic")
	}
}

func TestClusterStrategyTickRunsFailureHeuristic(t *testing.T) {
	node := cluster.NewNode(
		cluster.Config{
			NodeID:            "node2",
			SeedID:            "node1",
			Peers:             []string{"node1", "node2", "node3"},
			FailureCheckEvery: 3,
		},
		func(p []byte) ([]byte, error) { return p, nil },
		cluster.NewBrokerNotifier(transport.NewMem(), 1),
		logging.NewNop(),
	)
	strategy := NewClusterStrategy(node, func([]byte) error { return nil }, logging.NewNop(), metrics.NewRelay())

	now := time.Now()
	strategy.Tick(now)
	strategy.Tick(now)
	require.Equal(t, cluster.RoleFollower, node.Role())
	strategy.Tick(now)
	assert.Equal(t, cluster.RoleLeader, node.Role())
}
