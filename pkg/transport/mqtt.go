package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options configures the MQTT client.
type Options struct {
	// Address is the broker endpoint, e.g. "tcp://mosquitto:1883".
	Address string
	// ClientID identifies this client to the broker. Must be unique.
	ClientID string
	// ConnectTimeout bounds the initial connect handshake.
	ConnectTimeout time.Duration
	// PublishTimeout bounds each publish token wait.
	PublishTimeout time.Duration
	// Buffer is the inbound channel depth. Defaults to 256.
	Buffer int
}

func (o *Options) withDefaults() Options {
	res := *o
	if res.ConnectTimeout <= 0 {
		res.ConnectTimeout = 10 * time.Second
	}
	if res.PublishTimeout <= 0 {
		res.PublishTimeout = 5 * time.Second
	}
	if res.Buffer <= 0 {
		res.Buffer = 256
	}
	return res
}

// MQTT wraps a paho client behind the Consumer and Publisher interfaces.
// Paho invokes message callbacks on its own goroutines; deliveries are handed
// to a buffered channel so the relay loop can poll without blocking the
// client's network loop.
type MQTT struct {
	client   mqtt.Client
	opts     Options
	messages chan Message
}

// Dial connects to the broker.
func Dial(opts Options) (*MQTT, error) {
	opts = opts.withDefaults()

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Address).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(true)

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", opts.Address)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Address, err)
	}

	return &MQTT{
		client:   client,
		opts:     opts,
		messages: make(chan Message, opts.Buffer),
	}, nil
}

// Subscribe registers for a topic. Deliveries that arrive while the inbound
// channel is full are dropped rather than stalling the client callback.
func (m *MQTT) Subscribe(topic string, qos byte) error {
	token := m.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case m.messages <- Message{Topic: msg.Topic(), Payload: msg.Payload()}:
		default:
		}
	})
	if !token.WaitTimeout(m.opts.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Messages returns the inbound delivery channel.
func (m *MQTT) Messages() <-chan Message {
	return m.messages
}

// Publish delivers a payload to the topic and waits for broker acknowledgement
// up to the publish timeout.
func (m *MQTT) Publish(topic string, qos byte, payload []byte) error {
	token := m.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(m.opts.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
