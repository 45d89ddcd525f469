package progress

import (
	"sync"
	"time"
)

const (
	defaultBuffer    = 32
	defaultHistory   = 32
	defaultRetention = 10 * time.Minute
)

// HubConfig bounds per-request memory held by a Hub.
type HubConfig struct {
	// Buffer is the channel capacity of each subscriber.
	Buffer int
	// History is how many recent events are replayed to late subscribers.
	History int
	// Retention is how long a finished request's history is kept.
	Retention time.Duration
}

type stream struct {
	history    []Event
	subs       map[chan Event]struct{}
	finishedAt time.Time
}

func (s *stream) finished() bool { return !s.finishedAt.IsZero() }

// Hub routes events to subscribers by request id. A subscriber that falls
// behind loses intermediate events but always receives the terminal one,
// and unsubscribing never affects the publishing side.
type Hub struct {
	cfg     HubConfig
	mu      sync.Mutex
	streams map[string]*stream
	now     func() time.Time
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	return &Hub{
		cfg:     cfg,
		streams: make(map[string]*stream),
		now:     time.Now,
	}
}

// Publish records ev and forwards it to current subscribers without
// blocking. Events without a request id are dropped.
func (h *Hub) Publish(ev Event) {
	if ev.RequestID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.streamLocked(ev.RequestID)
	if s.finished() {
		return
	}

	s.history = append(s.history, ev)
	if len(s.history) > h.cfg.History {
		s.history = s.history[len(s.history)-h.cfg.History:]
	}

	for ch := range s.subs {
		deliver(ch, ev)
	}

	if ev.Stage.Terminal() {
		s.finishedAt = h.now()
		for ch := range s.subs {
			close(ch)
		}
		s.subs = nil
	}
}

// deliver sends ev, discarding the oldest buffered event when the
// subscriber is full so the newest (possibly terminal) event gets through.
func deliver(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a channel that first replays recent history and then
// follows live events. The channel is closed after a terminal event or when
// cancel is called.
func (h *Hub) Subscribe(requestID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.streamLocked(requestID)
	size := h.cfg.Buffer
	if len(s.history) > size {
		size = len(s.history)
	}
	ch := make(chan Event, size)
	for _, ev := range s.history {
		ch <- ev
	}

	if s.finished() {
		close(ch)
		return ch, func() {}
	}

	if s.subs == nil {
		s.subs = make(map[chan Event]struct{})
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.streams[requestID]; ok {
				if _, live := cur.subs[ch]; live {
					delete(cur.subs, ch)
					close(ch)
				}
			}
		})
	}
	return ch, cancel
}

// Last returns the most recent event for a request.
func (h *Hub) Last(requestID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[requestID]
	if !ok || len(s.history) == 0 {
		return Event{}, false
	}
	return s.history[len(s.history)-1], true
}

// Sweep drops finished streams older than the retention window and idle
// streams nobody watches. It returns how many were removed.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-h.cfg.Retention)
	removed := 0
	for id, s := range h.streams {
		if (s.finished() && s.finishedAt.Before(cutoff)) || (len(s.history) == 0 && len(s.subs) == 0) {
			delete(h.streams, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until stop is closed.
func (h *Hub) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Sweep()
		case <-stop:
			return
		}
	}
}

func (h *Hub) streamLocked(requestID string) *stream {
	s, ok := h.streams[requestID]
	if !ok {
		s = &stream{}
		h.streams[requestID] = s
	}
	return s
}
