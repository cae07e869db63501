package client

// Message is the client-side view of one chat message.
type Message struct {
	ID             string
	SenderID       string
	SenderNickname string
	Content        string
	Timestamp      int64
}

// HeightFunc reports the rendered height of a message, used to keep the
// scroll anchor stationary when older pages are prepended.
type HeightFunc func(Message) int

// ThreadView is the ordered, id-deduplicated message sequence for one open
// thread. Two producers feed it: backward paginated fetches (newest-first
// server order, reversed here to chronological) and the live push stream,
// always appended at the tail. A message id seen once is never added again.
type ThreadView struct {
	threadID    string
	messages    []Message
	seen        map[string]struct{}
	pagesLoaded int
	hasMore     bool
	inFlight    bool
	scrollTop   int
	heightOf    HeightFunc
}

func newThreadView(threadID string, heightOf HeightFunc) *ThreadView {
	if heightOf == nil {
		heightOf = func(Message) int { return 1 }
	}
	return &ThreadView{
		threadID: threadID,
		seen:     make(map[string]struct{}),
		hasMore:  true,
		heightOf: heightOf,
	}
}

// Messages returns the merged sequence in chronological order.
func (v *ThreadView) Messages() []Message { return v.messages }

// HasMore reports whether older pages remain on the server.
func (v *ThreadView) HasMore() bool { return v.hasMore }

// ScrollTop returns the current scroll offset.
func (v *ThreadView) ScrollTop() int { return v.scrollTop }

// SetScrollTop records the scroll offset reported by the viewport.
func (v *ThreadView) SetScrollTop(top int) { v.scrollTop = top }

// append adds a message at the tail unless its id was already merged.
func (v *ThreadView) append(m Message) bool {
	if _, dup := v.seen[m.ID]; dup {
		return false
	}
	v.seen[m.ID] = struct{}{}
	v.messages = append(v.messages, m)
	return true
}

// prepend merges one older page (already reversed to chronological order)
// above the existing sequence and adjusts the scroll offset by exactly the
// height added above the anchor.
func (v *ThreadView) prepend(chronological []Message) {
	var fresh []Message
	added := 0
	for _, m := range chronological {
		if _, dup := v.seen[m.ID]; dup {
			continue
		}
		v.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
		added += v.heightOf(m)
	}
	if len(fresh) == 0 {
		return
	}
	v.messages = append(fresh, v.messages...)
	v.scrollTop += added
}

// HistoryMerger owns the per-thread views and the "which thread is open"
// staleness check. It is driven from a single event loop and needs no
// internal locking.
type HistoryMerger struct {
	openThread string
	views      map[string]*ThreadView
	heightOf   HeightFunc
}

// NewHistoryMerger creates a merger. heightOf may be nil when scroll
// anchoring is not needed (every message then counts height 1).
func NewHistoryMerger(heightOf HeightFunc) *HistoryMerger {
	return &HistoryMerger{
		views:    make(map[string]*ThreadView),
		heightOf: heightOf,
	}
}

func (h *HistoryMerger) view(threadID string) *ThreadView {
	v, ok := h.views[threadID]
	if !ok {
		v = newThreadView(threadID, h.heightOf)
		h.views[threadID] = v
	}
	return v
}

// Open marks a thread as the active one and returns its view.
func (h *HistoryMerger) Open(threadID string) *ThreadView {
	h.openThread = threadID
	return h.view(threadID)
}

// OpenThread returns the id of the currently open thread.
func (h *HistoryMerger) OpenThread() string { return h.openThread }

// BeginFetch reserves the next backward fetch for a thread and returns the
// 1-based page to request. It refuses when a fetch is already in flight or
// no more pages remain, so concurrent duplicate fetches are suppressed.
func (h *HistoryMerger) BeginFetch(threadID string) (page int, ok bool) {
	v := h.view(threadID)
	if v.inFlight || !v.hasMore {
		return 0, false
	}
	v.inFlight = true
	return v.pagesLoaded + 1, true
}

// ApplyPage merges a fetched page. newestFirst is the server order; hasNext
// is the server's "more pages available" flag. The result is discarded when
// the thread is no longer the open one (the user switched threads while the
// fetch was in flight). Reports whether the page was applied.
func (h *HistoryMerger) ApplyPage(threadID string, newestFirst []Message, hasNext bool) bool {
	v := h.view(threadID)
	v.inFlight = false

	if threadID != h.openThread {
		return false
	}

	chronological := make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		chronological[len(newestFirst)-1-i] = m
	}

	v.hasMore = hasNext
	v.pagesLoaded++
	if v.pagesLoaded == 1 {
		for _, m := range chronological {
			v.append(m)
		}
	} else {
		v.prepend(chronological)
	}
	return true
}

// FailFetch releases the in-flight guard after a failed fetch so a later
// attempt can retry the same page.
func (h *HistoryMerger) FailFetch(threadID string) {
	h.view(threadID).inFlight = false
}

// AppendLive merges one message from the live push stream at the tail of its
// thread. A message already merged from a page fetch is dropped, and vice
// versa: an id appears exactly once no matter which producer saw it first.
// Reports whether the message was new.
func (h *HistoryMerger) AppendLive(threadID string, m Message) bool {
	return h.view(threadID).append(m)
}
