// Package mqtttest provides an in-memory MQTT client for tests. Published
// messages are delivered synchronously to handlers subscribed to the exact
// topic.
package mqtttest

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is an in-memory stand-in for mqtt.Client.
type Client struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []Published

	// SubscribeErr, when set, fails every Subscribe.
	SubscribeErr error
	// StallUnsubscribe makes Unsubscribe return a token that never
	// completes, as when the broker ack is never processed.
	StallUnsubscribe bool
}

// Published records one Publish call.
type Published struct {
	Topic    string
	Retained bool
	Payload  []byte
}

var _ mqtt.Client = (*Client)(nil)

// NewClient creates an empty client.
func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool      { return true }
func (c *Client) IsConnectionOpen() bool { return true }
func (c *Client) Connect() mqtt.Token    { return doneToken(nil) }
func (c *Client) Disconnect(uint)        {}

func (c *Client) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	default:
		return doneToken(errors.New("mqtttest: unsupported payload type"))
	}

	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, Retained: retained, Payload: data})
	h := c.handlers[topic]
	c.mu.Unlock()

	if h != nil {
		h(c, &message{topic: topic, payload: data, retained: retained})
	}
	return doneToken(nil)
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	if c.SubscribeErr != nil {
		return doneToken(c.SubscribeErr)
	}
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
	return doneToken(nil)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		if t := c.Subscribe(topic, qos, callback); t.Error() != nil {
			return t
		}
	}
	return doneToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.mu.Unlock()
	if c.StallUnsubscribe {
		return &token{done: make(chan struct{})}
	}
	return doneToken(nil)
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.NewOptionsReader(mqtt.NewClientOptions())
}

// Subscribed reports whether a handler is registered for topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

// Published returns every message published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

type token struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *token {
	t := &token{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *token) Wait() bool {
	<-t.done
	return true
}

func (t *token) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *token) Done() <-chan struct{} { return t.done }
func (t *token) Error() error          { return t.err }

type message struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 0 }
func (m *message) Retained() bool    { return m.retained }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
