package broadcast

import (
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterly/rosterd/internal/metrics"
)

const (
	// DefaultReplaySize bounds the per-topic replay ring.
	DefaultReplaySize = 1000

	// subscriberQueueSize bounds each subscriber's outbound queue. A full
	// queue drops the subscriber rather than blocking publishers.
	subscriberQueueSize = 256
)

// Subscriber is one connected client's view of the hub: a bounded queue of
// envelopes plus its topic patterns. The websocket layer drains Queue.
type Subscriber struct {
	ID    string
	Queue chan Envelope

	mu       sync.Mutex
	patterns map[string]bool
	dropped  bool
}

func (s *Subscriber) matches(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.patterns {
		if ok, _ := path.Match(p, topic); ok || p == topic {
			return true
		}
	}
	return false
}

// Hub is the topic registry. Per topic it keeps a monotonic sequence, a
// bounded replay ring and a copy-on-write subscriber snapshot so publication
// never blocks on subscriber churn.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	subs       map[string]*Subscriber
	replaySize int
	logger     *slog.Logger
	closed     bool
}

type topic struct {
	mu   sync.Mutex
	seq  uint64
	ring []Envelope // ordered, at most replaySize
	// snapshot is replaced wholesale on subscribe/unsubscribe; Publish reads
	// it without the hub lock.
	snapshot []*Subscriber
}

func NewHub(replaySize int, logger *slog.Logger) *Hub {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	return &Hub{
		topics:     make(map[string]*topic),
		subs:       make(map[string]*Subscriber),
		replaySize: replaySize,
		logger:     logger.With("component", "broadcast"),
	}
}

// Register adds a new subscriber with no subscriptions yet.
func (h *Hub) Register() *Subscriber {
	s := &Subscriber{
		ID:       uuid.NewString(),
		Queue:    make(chan Envelope, subscriberQueueSize),
		patterns: make(map[string]bool),
	}
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	metrics.BroadcastClients.Inc()
	return s
}

// Unregister removes the subscriber from every topic and closes its queue.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s.ID)
	for _, t := range h.topics {
		t.removeSubscriber(s)
	}
	h.mu.Unlock()

	s.mu.Lock()
	if !s.dropped {
		s.dropped = true
		close(s.Queue)
	}
	s.mu.Unlock()
	metrics.BroadcastClients.Dec()
}

// Subscribe adds topic patterns for the subscriber and replays buffered
// events newer than the client's last seen sequence. When the ring no longer
// covers the requested position the subscriber gets a resync_required event
// instead of a partial replay.
func (h *Hub) Subscribe(s *Subscriber, patterns []string, lastSeq map[string]uint64) {
	s.mu.Lock()
	for _, p := range patterns {
		s.patterns[p] = true
	}
	s.mu.Unlock()

	h.mu.Lock()
	for name, t := range h.topics {
		if s.matches(name) {
			t.addSubscriber(s)
		}
	}
	h.mu.Unlock()

	for topicName, last := range lastSeq {
		if !s.matches(topicName) {
			continue
		}
		h.replay(s, topicName, last)
	}
}

// Unsubscribe drops the given patterns.
func (h *Hub) Unsubscribe(s *Subscriber, patterns []string) {
	s.mu.Lock()
	for _, p := range patterns {
		delete(s.patterns, p)
	}
	s.mu.Unlock()

	h.mu.Lock()
	for name, t := range h.topics {
		if !s.matches(name) {
			t.removeSubscriber(s)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) replay(s *Subscriber, topicName string, last uint64) {
	h.mu.RLock()
	t, ok := h.topics[topicName]
	h.mu.RUnlock()
	if !ok {
		// No buffered state for the topic (for example after a restart). A
		// client that claims to have seen events cannot be caught up.
		if last > 0 {
			h.offer(s, Envelope{
				EventID: uuid.NewString(),
				Topic:   topicName,
				Type:    EventResyncRequired,
				TS:      time.Now().UTC(),
			})
		}
		return
	}

	t.mu.Lock()
	var pending []Envelope
	resync := false
	if len(t.ring) > 0 && t.ring[0].Seq > last+1 {
		resync = true
	} else {
		for _, env := range t.ring {
			if env.Seq > last {
				pending = append(pending, env)
			}
		}
	}
	t.mu.Unlock()

	if resync {
		h.offer(s, Envelope{
			EventID: uuid.NewString(),
			Topic:   topicName,
			Type:    EventResyncRequired,
			TS:      time.Now().UTC(),
		})
		return
	}
	for _, env := range pending {
		if !h.offer(s, env) {
			return
		}
	}
}

// Publish assigns the next sequence for the topic, buffers the event and
// fans it out. A subscriber whose queue is full is dropped immediately; the
// websocket layer closes its channel with a resync_required reason.
func (h *Hub) Publish(topicName, eventType string, payload any) Envelope {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Envelope{}
	}
	t, ok := h.topics[topicName]
	if !ok {
		t = &topic{}
		for _, s := range h.subs {
			if s.matches(topicName) {
				t.snapshot = append(t.snapshot, s)
			}
		}
		h.topics[topicName] = t
	}
	h.mu.Unlock()

	t.mu.Lock()
	t.seq++
	env := Envelope{
		EventID: uuid.NewString(),
		Topic:   topicName,
		Seq:     t.seq,
		Type:    eventType,
		Payload: payload,
		TS:      time.Now().UTC(),
	}
	t.ring = append(t.ring, env)
	if len(t.ring) > h.replaySize {
		t.ring = t.ring[len(t.ring)-h.replaySize:]
	}
	snapshot := t.snapshot
	t.mu.Unlock()

	metrics.BroadcastEventsTotal.WithLabelValues(eventType).Inc()

	for _, s := range snapshot {
		if !h.offer(s, env) {
			h.logger.Warn("dropping slow subscriber", "subscriber", s.ID, "topic", topicName)
			metrics.BroadcastDrops.Inc()
			h.Unregister(s)
		}
	}
	return env
}

// offer enqueues without blocking. False means the subscriber is full or
// gone.
func (h *Hub) offer(s *Subscriber, env Envelope) bool {
	s.mu.Lock()
	if s.dropped {
		s.mu.Unlock()
		return false
	}
	select {
	case s.Queue <- env:
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// Close drops every subscriber. New publishes become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.Unregister(s)
	}
}

func (t *topic) addSubscriber(s *Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.snapshot {
		if existing.ID == s.ID {
			return
		}
	}
	next := make([]*Subscriber, len(t.snapshot), len(t.snapshot)+1)
	copy(next, t.snapshot)
	t.snapshot = append(next, s)
}

func (t *topic) removeSubscriber(s *Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.snapshot {
		if existing.ID == s.ID {
			next := make([]*Subscriber, 0, len(t.snapshot)-1)
			next = append(next, t.snapshot[:i]...)
			next = append(next, t.snapshot[i+1:]...)
			t.snapshot = next
			return
		}
	}
}
