package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const defaultTypingIdle = 2000 * time.Millisecond

// TypingSender is the outbound surface the typing coordinator needs.
// *Client satisfies it.
type TypingSender interface {
	SendTyping(receiverID, groupID string, isTyping bool) error
}

// TypingNotifier turns keystrokes into typing signals with client-owned
// expiry. Each keystroke sends isTyping=true for the active thread and
// cancel-and-replaces a single idle timer; when the timer fires with no
// further keystrokes, isTyping=false is sent. At most one pending expiry
// exists at any time.
type TypingNotifier struct {
	sender TypingSender
	clock  clock.Clock
	idle   time.Duration

	mu         sync.Mutex
	timer      *clock.Timer
	receiverID string
	groupID    string
}

// NewTypingNotifier creates a typing coordinator. A zero idle window uses the
// 2000ms default; a nil clock uses the wall clock.
func NewTypingNotifier(sender TypingSender, clk clock.Clock, idle time.Duration) *TypingNotifier {
	if clk == nil {
		clk = clock.New()
	}
	if idle == 0 {
		idle = defaultTypingIdle
	}
	return &TypingNotifier{
		sender: sender,
		clock:  clk,
		idle:   idle,
	}
}

// Keystroke records typing activity in the given thread. Exactly one of
// receiverID and groupID is set. Switching threads expires the previous
// thread's signal immediately.
func (t *TypingNotifier) Keystroke(receiverID, groupID string) {
	t.mu.Lock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
		if t.receiverID != receiverID || t.groupID != groupID {
			// The pending expiry belonged to another thread; close it out now.
			t.sendLocked(t.receiverID, t.groupID, false)
		}
	}

	t.receiverID = receiverID
	t.groupID = groupID
	t.sendLocked(receiverID, groupID, true)

	t.timer = t.clock.AfterFunc(t.idle, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.timer = nil
		t.sendLocked(receiverID, groupID, false)
	})
	t.mu.Unlock()
}

// Stop cancels any pending expiry and, if one was pending, sends the
// isTyping=false signal immediately. Used when the thread closes.
func (t *TypingNotifier) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return
	}
	t.timer.Stop()
	t.timer = nil
	t.sendLocked(t.receiverID, t.groupID, false)
}

func (t *TypingNotifier) sendLocked(receiverID, groupID string, isTyping bool) {
	// Best effort; a failed typing signal is not worth surfacing.
	_ = t.sender.SendTyping(receiverID, groupID, isTyping)
}
