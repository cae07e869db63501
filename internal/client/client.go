// Package client implements the realtime chat client: a websocket connection
// with bounded automatic reconnection, a typing coordinator with client-owned
// expiry, and a history merger that reconciles paginated fetches with the
// live push stream.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

// State is the connection state of the client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	// StateFailed is terminal: the retry budget is exhausted and no further
	// automatic attempts are made. A manual Connect starts over.
	StateFailed State = "failed"
)

// ErrConnectionFailed is surfaced to the application when the client gives up
// reconnecting.
var ErrConnectionFailed = errors.New("connection failed: retry attempts exhausted")

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 3000 * time.Millisecond
)

// Conn is the minimal websocket surface the client drives. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a websocket connection to the given URL.
type Dialer func(url string) (Conn, error)

func defaultDial(rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Client.
type Options struct {
	// ServerURL is the websocket base URL, e.g. "ws://localhost:5000/ws".
	ServerURL string
	// Token is the credential re-presented on every (re)connect.
	Token string
	// MaxRetries bounds consecutive failed attempts before the terminal
	// failed state. Defaults to 5.
	MaxRetries int
	// RetryDelay is the fixed wait between attempts. Defaults to 3000ms.
	RetryDelay time.Duration
	// Dial and Clock are swappable for tests.
	Dial  Dialer
	Clock clock.Clock
}

// Client maintains the realtime connection and dispatches inbound frames to
// registered handlers.
type Client struct {
	opts Options

	mu       sync.Mutex
	state    State
	failures int
	conn     Conn
	writeMu  sync.Mutex
	handlers map[string]func(json.RawMessage)
	onState  func(State)
	done     chan struct{}
	running  bool
}

// New creates a client. Connect starts the connection loop.
func New(opts Options) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Dial == nil {
		opts.Dial = defaultDial
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Client{
		opts:     opts,
		state:    StateDisconnected,
		handlers: make(map[string]func(json.RawMessage)),
	}
}

// On registers a handler for a frame type. Handlers run on the read loop
// goroutine, one at a time.
func (c *Client) On(frameType string, handler func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[frameType] = handler
}

// OnStateChange registers a callback for connection state transitions.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop. Calling it after the terminal failed
// state resets the failure counter and starts over.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.failures = 0
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(done)
}

// Close stops the connection loop and closes any live connection.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(StateDisconnected)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	onState := c.onState
	c.mu.Unlock()

	if onState != nil {
		onState(s)
	}
}

func (c *Client) wsURL() string {
	return c.opts.ServerURL + "?token=" + url.QueryEscape(c.opts.Token)
}

// run drives the connection state machine: dial, read until error, then
// retry with a fixed delay until the budget is exhausted.
func (c *Client) run(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		c.setState(StateConnecting)
		conn, err := c.opts.Dial(c.wsURL())
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.failures = 0
			c.mu.Unlock()
			c.setState(StateOpen)

			c.readLoop(conn)

			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()

			select {
			case <-done:
				return
			default:
			}
			c.setState(StateDisconnected)
		} else {
			logger.Warnf("connect to %s failed: %v", c.opts.ServerURL, err)

			// Only failed dials consume the retry budget; a drop after a
			// successful connect starts a fresh round of attempts.
			c.mu.Lock()
			c.failures++
			failures := c.failures
			c.mu.Unlock()

			if failures >= c.opts.MaxRetries {
				c.mu.Lock()
				c.running = false
				c.mu.Unlock()
				c.setState(StateFailed)
				logger.Errorf("%v", ErrConnectionFailed)
				return
			}
		}

		logger.Infof("reconnecting in %v", c.opts.RetryDelay)
		timer := c.opts.Clock.Timer(c.opts.RetryDelay)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return
		}
	}
}

// readLoop consumes frames until a read error and dispatches them by type.
// A frame that cannot be decoded is logged and dropped.
func (c *Client) readLoop(conn Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debugf("read error: %v", err)
			return
		}

		env, err := wire.DecodeEnvelope(data)
		if err != nil {
			logger.Warnf("drop undecodable frame: %v", err)
			continue
		}

		c.mu.Lock()
		handler := c.handlers[env.Type]
		c.mu.Unlock()

		if handler == nil {
			logger.Debugf("no handler for frame type %q", env.Type)
			continue
		}
		handler(env.Data)
	}
}

// Send encodes and writes an envelope. Writes are serialized; concurrent
// callers never interleave frames.
func (c *Client) Send(env wire.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	frame, err := env.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) sendCommand(frameType string, data any) error {
	env, err := wire.NewEnvelope(frameType, data)
	if err != nil {
		return err
	}
	return c.Send(env)
}

// SendPrivateMessage sends a direct message.
func (c *Client) SendPrivateMessage(receiverID, content string) error {
	return c.sendCommand(wire.TypePrivateMessage, wire.PrivateMessageCommand{
		ReceiverID: receiverID,
		Content:    content,
	})
}

// SendGroupMessage sends a message to a group.
func (c *Client) SendGroupMessage(groupID, content string) error {
	return c.sendCommand(wire.TypeGroupMessage, wire.GroupMessageCommand{
		GroupID: groupID,
		Content: content,
	})
}

// SendTyping signals typing state for a private or group thread.
func (c *Client) SendTyping(receiverID, groupID string, isTyping bool) error {
	return c.sendCommand(wire.TypeTyping, wire.TypingCommand{
		ReceiverID: receiverID,
		GroupID:    groupID,
		IsTyping:   isTyping,
	})
}

// SendMarkRead marks all messages from the given sender as read.
func (c *Client) SendMarkRead(senderID string) error {
	return c.sendCommand(wire.TypeMarkRead, wire.MarkReadCommand{SenderID: senderID})
}
