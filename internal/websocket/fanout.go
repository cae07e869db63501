package websocket

import (
	"sync"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

// Fanout delivers one event to a computed set of live connections.
//
// Delivery is best effort: targets without a live connection are skipped, and
// a failed send is logged without evicting the target from the registry.
// Cleanup happens when that connection's own read loop next errors.
type Fanout struct {
	registry *Registry
}

// NewFanout creates a fanout over the given registry.
func NewFanout(registry *Registry) *Fanout {
	return &Fanout{registry: registry}
}

// Deliver encodes the envelope once and sends it to every reachable target
// in parallel, waiting for all sends to be enqueued.
func (f *Fanout) Deliver(targetIDs []string, env wire.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		logger.Errorf("encode %s frame: %v", env.Type, err)
		return
	}

	var wg sync.WaitGroup
	for _, id := range targetIDs {
		t, ok := f.registry.Lookup(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id string, t Transport) {
			defer wg.Done()
			if err := t.Send(frame); err != nil {
				logger.Warnf("send %s to user %s failed: %v", env.Type, id, err)
			}
		}(id, t)
	}
	wg.Wait()
}

// DeliverToAllExcept sends the envelope to every registered connection other
// than excludeID.
func (f *Fanout) DeliverToAllExcept(excludeID string, env wire.Envelope) {
	ids := f.registry.ListOnline()
	targets := ids[:0]
	for _, id := range ids {
		if id != excludeID {
			targets = append(targets, id)
		}
	}
	f.Deliver(targets, env)
}
