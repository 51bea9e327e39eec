package transport

import (
	"fmt"
	"sync"
)

// Mem is an in-process broker for tests: topics map straight onto buffered
// channels, with an optional hook to fail or inspect publishes.
type Mem struct {
	mu   sync.Mutex
	subs map[string][]*MemConsumer

	// PublishHook, when set, runs before fan-out; returning an error fails
	// the publish without delivering anything.
	PublishHook func(topic string, payload []byte) error
}

// NewMem creates an empty in-process broker.
func NewMem() *Mem {
	return &Mem{subs: make(map[string][]*MemConsumer)}
}

// Subscribe registers a consumer for a topic.
func (m *Mem) Subscribe(topic string) *MemConsumer {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &MemConsumer{
		broker:   m,
		topic:    topic,
		messages: make(chan Message, 256),
	}
	m.subs[topic] = append(m.subs[topic], c)
	return c
}

// Publish fans a payload out to every consumer of the topic. A consumer with
// a full channel misses the delivery, mirroring the real client's behaviour.
func (m *Mem) Publish(topic string, _ byte, payload []byte) error {
	m.mu.Lock()
	hook := m.PublishHook
	subs := append([]*MemConsumer(nil), m.subs[topic]...)
	m.mu.Unlock()

	if hook != nil {
		if err := hook(topic, payload); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}

	for _, c := range subs {
		select {
		case c.messages <- Message{Topic: topic, Payload: payload}:
		default:
		}
	}
	return nil
}

// MemConsumer consumes one topic from a Mem broker.
type MemConsumer struct {
	broker   *Mem
	topic    string
	closed   sync.Once
	messages chan Message
}

func (c *MemConsumer) Messages() <-chan Message {
	return c.messages
}

func (c *MemConsumer) Close() error {
	c.closed.Do(func() {
		c.broker.mu.Lock()
		defer c.broker.mu.Unlock()
		subs := c.broker.subs[c.topic]
		for i, s := range subs {
			if s == c {
				c.broker.subs[c.topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
	return nil
}
