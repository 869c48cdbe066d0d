// Package stream maintains the duplex connection to the gesture classification
// service: it ships normalized landmark vectors and delivers parsed replies.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection state of a Client.
type State int

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// ErrNoURL is returned by Connect when the client has no endpoint configured.
var ErrNoURL = errors.New("stream: no endpoint url")

// Config holds the client configuration.
type Config struct {
	URL              string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

// DefaultConfig returns the default client configuration for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		ReconnectDelay:   3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        64 * 1024,
	}
}

// Tap observes raw traffic. Outbound is called after a payload is written,
// Inbound for every payload read, before parsing.
type Tap interface {
	Outbound(p []byte)
	Inbound(p []byte)
}

// Stats is a snapshot of the client counters.
type Stats struct {
	Sent       uint64 `json:"sent"`
	Dropped    uint64 `json:"dropped"`
	Received   uint64 `json:"received"`
	Malformed  uint64 `json:"malformed"`
	Reconnects uint64 `json:"reconnects"`
}

// Client keeps one logical connection to the service alive, redialing after
// ReconnectDelay whenever it is lost.
type Client struct {
	config Config
	dialer *websocket.Dialer
	tap    Tap

	mu       sync.RWMutex
	state    State
	outbox   chan []byte
	stateFns []func(State)
	msgFns   []func(InboundMessage)
	cancel   context.CancelFunc
	done     chan struct{}

	sent       atomic.Uint64
	dropped    atomic.Uint64
	received   atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
}

// NewClient creates a Client. Zero durations fall back to the defaults.
func NewClient(config Config) *Client {
	def := DefaultConfig(config.URL)
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = def.ReconnectDelay
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = def.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = def.ReadLimit
	}

	return &Client{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		state: Closed,
	}
}

// SetTap installs a traffic observer. It must be called before Connect.
func (c *Client) SetTap(t Tap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tap = t
}

// OnStateChange registers fn to be called once for every state transition,
// in order, from the connection goroutine.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// OnMessage registers fn to receive every well-formed inbound message.
func (c *Client) OnMessage(fn func(InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgFns = append(c.msgFns, fn)
}

// Connect starts the connection loop. It returns immediately; calling it
// while the loop is already running does nothing.
func (c *Client) Connect(ctx context.Context) error {
	if c.config.URL == "" {
		return ErrNoURL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(loopCtx, c.done)
	return nil
}

// Close stops the connection loop, closes the socket and waits for the loop
// to exit. The client can be connected again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns the current counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Received:   c.received.Load(),
		Malformed:  c.malformed.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// Send hands a vector to the connection writer. It never blocks: when the
// connection is not open the vector is dropped, and an unsent vector still
// waiting in the outbox is replaced by the newer one.
func (c *Client) Send(v []float64) {
	c.mu.RLock()
	outbox := c.outbox
	c.mu.RUnlock()

	if outbox == nil {
		c.dropped.Add(1)
		return
	}

	p, err := json.Marshal(v)
	if err != nil {
		c.dropped.Add(1)
		log.Printf("stream: encode vector: %v", err)
		return
	}

	select {
	case outbox <- p:
		return
	default:
	}

	// Slot is full: discard the stale vector and retry once.
	select {
	case <-outbox:
		c.dropped.Add(1)
	default:
	}
	select {
	case outbox <- p:
	default:
		c.dropped.Add(1)
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.release(done)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.reconnects.Add(1)
		}
		c.setState(Connecting, nil)

		err := c.session(ctx)
		c.setState(Closed, nil)

		if ctx.Err() != nil {
			return
		}
		log.Printf("stream: connection to %s lost: %v (retrying in %s)", c.config.URL, err, c.config.ReconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

// release forgets the loop that owns done so a later Connect can start a new
// one. A loop already detached by Close is left alone.
func (c *Client) release(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return
	}
	c.cancel()
	c.cancel, c.done = nil, nil
}

// session dials once and serves the connection until it fails or ctx ends.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(c.config.ReadLimit)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-sessCtx.Done()
		if ctx.Err() != nil {
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		}
		conn.Close()
	}()

	c.mu.RLock()
	tap := c.tap
	c.mu.RUnlock()

	outbox := make(chan []byte, 1)
	go c.writeLoop(sessCtx, cancel, conn, outbox, tap)

	c.setState(Open, outbox)
	defer c.detachOutbox()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.received.Add(1)
		if tap != nil {
			tap.Inbound(data)
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.malformed.Add(1)
			log.Printf("stream: dropping message: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbox <-chan []byte, tap Tap) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, p); err != nil {
				log.Printf("stream: write failed: %v", err)
				cancel()
				return
			}
			c.sent.Add(1)
			if tap != nil {
				tap.Outbound(p)
			}
		}
	}
}

func (c *Client) detachOutbox() {
	c.mu.Lock()
	c.outbox = nil
	c.mu.Unlock()
}

// setState records s and notifies observers. Only the connection loop calls
// it, so observers see transitions in order. The outbox is attached in the
// same critical section as the Open transition so Send never sees Open
// without a writer.
func (c *Client) setState(s State, outbox chan []byte) {
	c.mu.Lock()
	if s == Open {
		c.outbox = outbox
	}
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fns := append(([]func(State))(nil), c.stateFns...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *Client) dispatch(msg InboundMessage) {
	c.mu.RLock()
	fns := append(([]func(InboundMessage))(nil), c.msgFns...)
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(msg)
	}
}
