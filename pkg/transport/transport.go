package transport

// Message is one inbound delivery from the broker.
type Message struct {
	Topic   string
	Payload []byte
}

// Consumer delivers inbound messages from a subscribed topic, in topic order.
type Consumer interface {
	// Messages returns the channel inbound deliveries arrive on. The broker
	// client fills it from its own callback goroutine; receivers poll it.
	Messages() <-chan Message
	// Close tears down the subscription.
	Close() error
}

// Publisher delivers payloads to a downstream topic.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}
