package mqtt

import (
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/ReelEngine/internal/events"
)

// Client wraps the Paho MQTT client.
type Client struct {
	client  paho.Client
	timeout time.Duration
	mu      sync.Mutex

	subMu sync.Mutex
	subs  map[string]func(topic string, payload []byte)
}

// BrokerURL returns the broker URL: MQTT_URL wins over the configured value,
// which wins over the local default.
func BrokerURL(configured string) string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	if configured != "" {
		return configured
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect. Subscriptions
// are restored automatically after a reconnect.
func NewClient(broker, clientID string, timeout time.Duration) *Client {
	c := &Client{
		timeout: timeout,
		subs:    make(map[string]func(string, []byte)),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			events.Emit("warn", "transport.disconnected", err.Error(), map[string]interface{}{
				"broker": broker,
			})
		})

	c.client = paho.NewClient(opts)
	return c
}

func (c *Client) onConnect(pc paho.Client) {
	events.Emit("info", "transport.connected", "", nil)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for topic, handler := range c.subs {
		pc.Subscribe(topic, 1, wrap(handler))
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	c.subMu.Lock()
	c.subs[topic] = handler
	c.subMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, wrap(handler))
	if !token.WaitTimeout(c.timeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload with QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func wrap(handler func(string, []byte)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
