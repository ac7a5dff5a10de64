package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/config"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/discovery"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/document"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Message kinds, used as the metrics label.
const (
	KindDocument     = "document"
	KindDiscovery    = "discovery"
	KindAvailability = "availability"
)

// BirthHandler runs when Home Assistant announces it came online.
type BirthHandler func() error

type Client struct {
	client  mqtt.Client
	cfg     config.Config
	topics  discovery.Topics
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	connected bool
	onBirth   BirthHandler

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		topics:  discovery.TopicsFromConfig(cfg),
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTHost, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" || cfg.MQTTPassword != "" {
		logger.Debug("mqtt auth enabled", "username", cfg.MQTTUsername)
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(time.Duration(cfg.MQTTKeepAlive) * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// The broker flips availability to offline if we vanish.
	opts.SetWill(c.topics.Availability(), discovery.PayloadOffline, cfg.MQTTQoS, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTHost, "port", cfg.MQTTPort)
		c.onConnect()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// SetBirthHandler registers fn for birth messages. Call before Connect; the
// subscription is made on every (re)connect when discovery is enabled.
func (c *Client) SetBirthHandler(fn BirthHandler) {
	c.mu.Lock()
	c.onBirth = fn
	c.mu.Unlock()
}

func (c *Client) birthHandler() BirthHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onBirth
}

// onConnect runs in paho's callback goroutine after each connect.
func (c *Client) onConnect() {
	if err := c.publish(KindAvailability, c.topics.Availability(), true, []byte(discovery.PayloadOnline)); err != nil {
		c.logger.Error("publish online state", "error", err)
	}
	if c.cfg.SendDiscovery {
		if err := c.subscribeBirth(); err != nil {
			c.logger.Error("subscribe birth topic", "topic", c.cfg.BirthTopic, "error", err)
		}
	}
}

func (c *Client) subscribeBirth() error {
	topic := c.cfg.BirthTopic
	token := c.client.Subscribe(topic, c.cfg.MQTTQoS, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed to birth topic", "topic", topic)
	return nil
}

func (c *Client) handleMessage(topic string, payload []byte) {
	c.logger.Debug("received mqtt message", "topic", topic, "payload", string(payload))
	if topic != c.cfg.BirthTopic {
		return
	}
	if string(payload) != c.cfg.BirthOnlinePayload {
		c.logger.Debug("ignoring birth message", "payload", string(payload))
		return
	}
	fn := c.birthHandler()
	if fn == nil {
		return
	}
	c.logger.Info("home assistant came online, re-announcing sensors")
	if err := fn(); err != nil {
		c.logger.Error("birth handler failed", "error", err)
	}
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishDocument publishes a reading's document under the station key.
func (c *Client) PublishDocument(key string, doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return c.publish(KindDocument, c.topics.Document(key), false, data)
}

// PublishDiscovery publishes one sensor's discovery config.
func (c *Client) PublishDiscovery(ctx context.Context, a discovery.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal discovery payload: %w", err)
	}
	return c.publish(KindDiscovery, a.Topic, false, data)
}

func (c *Client) publish(kind, topic string, retain bool, payload []byte) error {
	err := c.doPublish(topic, retain, payload)
	if err != nil {
		c.metrics.PublishError(kind)
		return err
	}
	c.logger.Debug("published", "kind", kind, "topic", topic, "retain", retain, "size", len(payload))
	return nil
}

func (c *Client) doPublish(topic string, retain bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := c.client.Publish(topic, c.cfg.MQTTQoS, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect marks the bridge offline and closes the connection.
// Idempotent; after it Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.IsConnected() {
		if err := c.publish(KindAvailability, c.topics.Availability(), true, []byte(discovery.PayloadOffline)); err != nil {
			c.logger.Warn("publish offline state", "error", err)
		}
	}
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
	c.metrics.SetConnected(v)
}
