package engine

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const defaultMQTTTopic = "spikemon/events"

// alertPublisher delivers a serialized alert to a message broker.
type alertPublisher interface {
	Publish(data []byte) error
	Close()
}

// mqttPublisher connects on first use and lets paho reconnect afterwards.
type mqttPublisher struct {
	broker string
	topic  string

	mu        sync.Mutex
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func newMQTTPublisher(broker, topic string) *mqttPublisher {
	if topic == "" {
		topic = defaultMQTTTopic
	}
	return &mqttPublisher{broker: broker, topic: topic, newClient: mqtt.NewClient}
}

// validateBrokerURL accepts the schemes paho can dial.
func validateBrokerURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid mqtt broker URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("mqtt broker URL has unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("mqtt broker URL has no host")
	}
	return nil
}

func (p *mqttPublisher) connect() (mqtt.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if err := validateBrokerURL(p.broker); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID("spikemon-" + uuid.NewString())
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(notifyTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)

	c := p.newClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(notifyTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out", p.broker)
	}
	if err := tok.Error(); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: %w", p.broker, err)
	}
	p.client = c
	return c, nil
}

func (p *mqttPublisher) Publish(data []byte) error {
	c, err := p.connect()
	if err != nil {
		return err
	}
	tok := c.Publish(p.topic, 1, false, data)
	if !tok.WaitTimeout(notifyTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	return tok.Error()
}

func (p *mqttPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}
