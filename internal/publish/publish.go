// Package publish fans predicted gestures out to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 16
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds the broker settings.
type Config struct {
	Broker   string
	Topic    string
	QoS      byte
	ClientID string
	Session  string // identifies this run in every message
}

// Message is the JSON payload published for a prediction.
type Message struct {
	Gesture   string `json:"gesture"`
	Session   string `json:"session"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

// Publisher publishes predictions to a topic.
type Publisher struct {
	cfg    Config
	client mqtt.Client
	queue  chan string
	now    func() time.Time

	mu        sync.RWMutex
	connected bool
	published uint64
	dropped   uint64
	errors    uint64
}

// New creates a Publisher. Missing client and session ids are generated.
func New(cfg Config) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "gesturecast-" + uuid.New().String()[:8]
	}
	if cfg.Session == "" {
		cfg.Session = uuid.New().String()
	}

	p := &Publisher{
		cfg:   cfg,
		queue: make(chan string, queueSize),
		now:   time.Now,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		log.Printf("mqtt: connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		log.Printf("mqtt: connection lost, reconnecting: %v", err)
	}

	p.client = mqtt.NewClient(opts)
	return p
}

// Session returns the session id included in every message.
func (p *Publisher) Session() string {
	return p.cfg.Session
}

// Connect establishes the broker connection.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Publish sends one prediction and waits for the broker to accept it.
func (p *Publisher) Publish(gesture string) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(Message{
		Gesture:   gesture,
		Session:   p.cfg.Session,
		Timestamp: p.now().UnixMilli(),
	})
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

// Notify queues a prediction for Run without blocking. When the queue is
// full the prediction is dropped.
func (p *Publisher) Notify(gesture string) {
	select {
	case p.queue <- gesture:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Run publishes queued predictions until ctx is done. Errors are logged.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case gesture := <-p.queue:
			if err := p.Publish(gesture); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}
	}
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqtt: disconnected")
	}
	p.setConnected(false)
}

// Stats returns publisher statistics
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Connected: p.connected,
		Published: p.published,
		Dropped:   p.dropped,
		Errors:    p.errors,
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
