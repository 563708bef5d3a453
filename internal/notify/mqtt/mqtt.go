// Package mqtt publishes hazard updates to an MQTT topic.
//
// MQTT suits sirens, displays and other devices that subscribe to a local
// broker. The connection is opened on the first publish and reused.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// client is the part of paho.Client used here.
type client interface {
	IsConnected() bool
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Options configures the MQTT notifier.
type Options struct {
	Broker   string
	Topic    string
	ClientID string

	// For testing: inject a fake client instead of connecting to a broker.
	Client client
}

// Payload is the JSON document published for each notification.
type Payload struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier publishes to one topic.
type Notifier struct {
	topic  string
	mu     sync.Mutex
	client client
}

// New creates an MQTT notifier.
func New(opts Options) *Notifier {
	c := opts.Client
	if c == nil {
		po := paho.NewClientOptions().
			AddBroker(opts.Broker).
			SetClientID(opts.ClientID).
			SetConnectTimeout(connectTimeout).
			SetAutoReconnect(true)
		c = paho.NewClient(po)
	}
	return &Notifier{topic: opts.Topic, client: c}
}

// Name returns "mqtt".
func (n *Notifier) Name() string { return "mqtt" }

// Notify publishes text as a Payload with QoS 1.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.client.IsConnected() {
		if err := wait(ctx, n.client.Connect()); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		slog.Info("mqtt connected", "topic", n.topic)
	}

	body, err := json.Marshal(Payload{Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	if err := wait(ctx, n.client.Publish(n.topic, qos, false, body)); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client.IsConnected() {
		n.client.Disconnect(quiesceMillis)
	}
	return nil
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
