package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; the embedded interface panics on anything else.
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	messages  []published
	err       error
	connected bool
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.err == nil
	return newToken(c.err)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(c.err)
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func newTestPublisher(t *testing.T) (*Publisher, *fakeClient) {
	t.Helper()
	p := New(Config{Broker: "localhost:1883", Topic: "gestures/test", QoS: 1, Session: "s-1"})
	client := &fakeClient{}
	p.client = client
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return p, client
}

func TestPublisher_Publish(t *testing.T) {
	p, client := newTestPublisher(t)

	if err := p.Publish("thumbs_up"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before Connect, got %v", err)
	}

	if err := p.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := p.Publish("thumbs_up"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := client.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].topic != "gestures/test" || msgs[0].qos != 1 {
		t.Errorf("unexpected topic/qos %s/%d", msgs[0].topic, msgs[0].qos)
	}

	var m Message
	if err := json.Unmarshal(msgs[0].payload, &m); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if m != (Message{Gesture: "thumbs_up", Session: "s-1", Timestamp: 1700000000123}) {
		t.Errorf("unexpected message %+v", m)
	}

	stats := p.Stats()
	if !stats.Connected || stats.Published != 1 || stats.Errors != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	p, client := newTestPublisher(t)
	p.Connect()
	client.err = errors.New("broker said no")

	if err := p.Publish("fist"); err == nil {
		t.Error("expected publish error")
	}
	if p.Stats().Errors != 1 {
		t.Errorf("expected error to be counted, got %+v", p.Stats())
	}
}

func TestPublisher_ConnectError(t *testing.T) {
	p, client := newTestPublisher(t)
	client.err = errors.New("refused")

	if err := p.Connect(); err == nil {
		t.Error("expected connect error")
	}
	if p.Stats().Connected {
		t.Error("should not be connected")
	}
}

func TestPublisher_NotifyAndRun(t *testing.T) {
	p, client := newTestPublisher(t)
	p.Connect()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Notify("peace")
	p.Notify("fist")

	deadline := time.Now().Add(2 * time.Second)
	for len(client.sent()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, got %d messages", len(client.sent()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	p.Disconnect()
	if p.Stats().Connected || client.IsConnected() {
		t.Error("expected disconnected")
	}
}

func TestPublisher_NotifyDropsWhenFull(t *testing.T) {
	p, _ := newTestPublisher(t)

	for i := 0; i < queueSize+3; i++ {
		p.Notify("x")
	}
	if got := p.Stats().Dropped; got != 3 {
		t.Errorf("expected 3 dropped, got %d", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{Broker: "tcp://broker:1883", Topic: "t"})

	if p.cfg.ClientID == "" || p.Session() == "" {
		t.Errorf("expected generated ids, got %+v", p.cfg)
	}
}

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1883":      "tcp://localhost:1883",
		"tcp://10.0.0.1:1883": "tcp://10.0.0.1:1883",
		"ssl://broker:8883":   "ssl://broker:8883",
	}
	for in, want := range tests {
		if got := brokerURL(in); got != want {
			t.Errorf("brokerURL(%q) = %q, want %q", in, got, want)
		}
	}
}
