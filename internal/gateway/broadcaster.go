package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Broadcaster fans SSEEvent values out to GET /events subscribers. A
// subscriber whose buffer is full misses the frame.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	closed bool
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

// subscribe returns a channel of ready-to-write SSE frames. The caller must
// unsubscribe when the connection closes. After close the channel is
// returned already closed.
func (b *Broadcaster) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// count reports the number of live subscribers.
func (b *Broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// close ends every subscription. Later sends are dropped.
func (b *Broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

// send serialises evt as a "data: <json>\n\n" frame for every subscriber.
func (b *Broadcaster) send(evt SSEEvent) {
	raw, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("gateway: failed to marshal SSE event", "type", evt.Type, "error", err)
		return
	}
	frame := make([]byte, 0, len(raw)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, raw...)
	frame = append(frame, '\n', '\n')

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}
