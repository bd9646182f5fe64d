package broadcast

import (
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func drain(t *testing.T, s *Subscriber) Envelope {
	t.Helper()
	select {
	case env := <-s.Queue:
		return env
	case <-time.After(time.Second):
		t.Fatal("no event within a second")
		return Envelope{}
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{ScheduleTopic("42")}, nil)

	h.Publish(ScheduleTopic("42"), EventAssignmentCreated, map[string]string{"id": "a1"})

	env := drain(t, s)
	if env.Type != EventAssignmentCreated {
		t.Errorf("type = %q, want %q", env.Type, EventAssignmentCreated)
	}
	if env.Seq != 1 {
		t.Errorf("seq = %d, want 1", env.Seq)
	}
	if env.EventID == "" {
		t.Error("missing event id")
	}
}

func TestSequencePerTopicMonotonic(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{"schedule:*"}, nil)

	h.Publish(ScheduleTopic("1"), EventAssignmentCreated, nil)
	h.Publish(ScheduleTopic("1"), EventAssignmentUpdated, nil)
	h.Publish(ScheduleTopic("2"), EventAssignmentCreated, nil)

	first := drain(t, s)
	second := drain(t, s)
	third := drain(t, s)

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("topic 1 seqs = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if third.Seq != 1 {
		t.Errorf("topic 2 seq = %d, want independent counter starting at 1", third.Seq)
	}
}

func TestPatternSubscription(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{"employee:*"}, nil)

	h.Publish(ScheduleTopic("1"), EventAssignmentCreated, nil)
	h.Publish(EmployeeTopic("e1"), EventNotificationCreated, nil)

	env := drain(t, s)
	if env.Topic != EmployeeTopic("e1") {
		t.Errorf("topic = %q, want only the employee topic", env.Topic)
	}
	select {
	case extra := <-s.Queue:
		t.Errorf("unexpected extra event %+v", extra)
	default:
	}
}

func TestReplayAfterReconnect(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	topicName := ScheduleTopic("42")
	for i := 0; i < 5; i++ {
		h.Publish(topicName, EventAssignmentCreated, i)
	}

	s := h.Register()
	h.Subscribe(s, []string{topicName}, map[string]uint64{topicName: 2})

	for wantSeq := uint64(3); wantSeq <= 5; wantSeq++ {
		env := drain(t, s)
		if env.Seq != wantSeq {
			t.Fatalf("replayed seq = %d, want %d", env.Seq, wantSeq)
		}
	}
}

func TestReplayBeyondBufferSignalsResync(t *testing.T) {
	h := NewHub(3, testLogger())
	defer h.Close()

	topicName := ScheduleTopic("42")
	for i := 0; i < 10; i++ {
		h.Publish(topicName, EventAssignmentCreated, i)
	}

	s := h.Register()
	// Ring holds seqs 8..10; asking to resume from 2 is unservable.
	h.Subscribe(s, []string{topicName}, map[string]uint64{topicName: 2})

	env := drain(t, s)
	if env.Type != EventResyncRequired {
		t.Errorf("type = %q, want %q", env.Type, EventResyncRequired)
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := NewHub(2000, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{ScheduleTopic("42")}, nil)

	// Never drain; overflow the bounded queue.
	for i := 0; i < subscriberQueueSize+10; i++ {
		h.Publish(ScheduleTopic("42"), EventAssignmentCreated, i)
	}

	// The queue was closed when the hub dropped the subscriber.
	var closed bool
	for {
		if _, ok := <-s.Queue; !ok {
			closed = true
			break
		}
	}
	if !closed {
		t.Error("slow subscriber queue not closed")
	}

	// Publishing after the drop must not panic or block.
	h.Publish(ScheduleTopic("42"), EventAssignmentUpdated, nil)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{ScheduleTopic("42")}, nil)
	h.Unregister(s)

	h.Publish(ScheduleTopic("42"), EventAssignmentCreated, nil)

	if _, ok := <-s.Queue; ok {
		t.Error("unregistered subscriber still receives events")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	s := h.Register()
	h.Subscribe(s, []string{ScheduleTopic("42")}, nil)
	h.Publish(ScheduleTopic("42"), EventAssignmentCreated, nil)
	drain(t, s)

	h.Unsubscribe(s, []string{ScheduleTopic("42")})
	h.Publish(ScheduleTopic("42"), EventAssignmentUpdated, nil)

	select {
	case env := <-s.Queue:
		t.Errorf("unexpected event after unsubscribe: %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReplayUnknownTopicSignalsResync(t *testing.T) {
	h := NewHub(10, testLogger())
	defer h.Close()

	// The hub holds no ring for the topic, but the client claims to have
	// seen events from a previous process. It cannot be caught up.
	s := h.Register()
	h.Subscribe(s, []string{ScheduleTopic("42")}, map[string]uint64{ScheduleTopic("42"): 5})

	env := drain(t, s)
	if env.Type != EventResyncRequired {
		t.Errorf("type = %q, want %q", env.Type, EventResyncRequired)
	}
	if env.Topic != ScheduleTopic("42") {
		t.Errorf("topic = %q, want %q", env.Topic, ScheduleTopic("42"))
	}

	// A client with no history on an unknown topic gets nothing.
	fresh := h.Register()
	h.Subscribe(fresh, []string{ScheduleTopic("7")}, map[string]uint64{ScheduleTopic("7"): 0})
	select {
	case got := <-fresh.Queue:
		t.Errorf("unexpected event %+v for a client with no history", got)
	default:
	}
}
