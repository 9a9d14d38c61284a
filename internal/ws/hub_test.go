package ws

import (
	"testing"
	"time"
)

type chanSubscriber struct {
	received chan []byte
	sendErr  error
	closed   bool
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{received: make(chan []byte, 4)}
}

func (s *chanSubscriber) Send(payload []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received <- payload
	return nil
}

func (s *chanSubscriber) Close() {
	s.closed = true
}

func waitFor(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
		return nil
	}
}

func TestHubBroadcastsToChannelSubscribers(t *testing.T) {
	hub := NewHub()
	deploySub := newChanSubscriber()
	syncSub := newChanSubscriber()

	hub.Register("deployments", deploySub)
	hub.Register("sync", syncSub)

	hub.Broadcast("deployments", []byte(`{"event":"deployment_ready"}`))

	got := waitFor(t, deploySub.received)
	if string(got) != `{"event":"deployment_ready"}` {
		t.Fatalf("unexpected payload: %s", got)
	}
	select {
	case payload := <-syncSub.received:
		t.Fatalf("sync subscriber should not receive deployment events, got %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

type stalledSubscriber struct {
	release chan struct{}
}

func (s *stalledSubscriber) Send(payload []byte) error {
	<-s.release
	return nil
}

func (s *stalledSubscriber) Close() {}

func TestHubBroadcastDropsWhenSubscriberStalls(t *testing.T) {
	hub := NewHub()
	stalled := &stalledSubscriber{release: make(chan struct{})}
	hub.Register("deployments", stalled)
	defer close(stalled.release)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Broadcast("deployments", []byte("event"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a stalled subscriber")
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := newChanSubscriber()

	hub.Register("sync", sub)
	hub.Broadcast("sync", []byte("one"))
	waitFor(t, sub.received)

	hub.Unregister("sync", sub)
	hub.Broadcast("sync", []byte("two"))

	select {
	case payload := <-sub.received:
		t.Fatalf("unregistered subscriber received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}
