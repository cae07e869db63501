package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
)

// Transport is the outbound half of one live client connection.
//
// Send enqueues a frame without blocking; the frame is written by the
// connection's own write pump, so concurrent senders never interleave
// partial writes on the same socket.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

const outboundQueueSize = 64

// Peer wraps a websocket connection with a serialized write pump.
type Peer struct {
	userID string
	conn   *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer creates a peer for an upgraded connection and starts its write pump.
func NewPeer(userID string, conn *websocket.Conn) *Peer {
	p := &Peer{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, outboundQueueSize),
		done:   make(chan struct{}),
	}
	go p.writePump()
	return p
}

// UserID returns the identity that authenticated this connection.
func (p *Peer) UserID() string { return p.userID }

// Send enqueues a frame for delivery. It fails when the connection is closed
// or the outbound queue is full; the caller treats both as a best-effort miss.
func (p *Peer) Send(frame []byte) error {
	select {
	case <-p.done:
		return fmt.Errorf("connection closed")
	default:
	}
	select {
	case p.send <- frame:
		return nil
	case <-p.done:
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("outbound queue full")
	}
}

// Close tears down the connection. Safe to call multiple times and from any
// goroutine; the read loop observes the close as a read error.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
	return nil
}

// ReadFrame blocks for the next inbound text frame.
func (p *Peer) ReadFrame() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	return data, err
}

// writePump drains the outbound queue onto the socket. It is the only
// goroutine that writes to the connection.
func (p *Peer) writePump() {
	for {
		select {
		case frame := <-p.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debugf("write to %s failed: %v", p.userID, err)
				p.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}
