package cluster

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notice is the envelope published to a peer when the leader has processed a
// payload. Delivery is fire-and-forget: there is no acknowledgement and no
// guarantee the peer applied it.
type Notice struct {
	Node      string          `json:"node"`
	Peer      string          `json:"peer"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"ts"`
}

// Marshal encodes the notice to bytes.
func (n Notice) Marshal() ([]byte, error) { return json.Marshal(n) }

// ReplicateTopic is the broker topic a peer listens on for replication
// notices.
func ReplicateTopic(peer string) string {
	return "cluster/replicate/" + peer
}

// LeaderTopic is the broker topic a leader listens on for payloads forwarded
// by followers.
func LeaderTopic(id string) string {
	return "cluster/leader/" + id
}

// Publisher is the slice of the transport the notifier needs.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Notifier carries inter-node traffic: replication notices from the leader
// and payload forwarding from followers.
type Notifier interface {
	Replicate(from, peer string, payload []byte) error
	ForwardToLeader(leader string, payload []byte) error
}

// BrokerNotifier publishes inter-node traffic over the shared broker, the
// same path all other traffic in the system takes.
type BrokerNotifier struct {
	pub Publisher
	qos byte
	now func() time.Time
}

// NewBrokerNotifier creates a notifier publishing at the given QoS.
func NewBrokerNotifier(pub Publisher, qos byte) *BrokerNotifier {
	return &BrokerNotifier{pub: pub, qos: qos, now: time.Now}
}

func (b *BrokerNotifier) Replicate(from, peer string, payload []byte) error {
	notice := Notice{
		Node:      from,
		Peer:      peer,
		Payload:   json.RawMessage(payload),
		Timestamp: b.now().Unix(),
	}
	data, err := notice.Marshal()
	if err != nil {
		return fmt.Errorf("encode notice for %s: %w", peer, err)
	}
	return b.pub.Publish(ReplicateTopic(peer), b.qos, data)
}

func (b *BrokerNotifier) ForwardToLeader(leader string, payload []byte) error {
	return b.pub.Publish(LeaderTopic(leader), b.qos, payload)
}
