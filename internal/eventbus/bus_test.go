package eventbus

import (
	"testing"
	"time"

	"pkt.systems/studiosync/schema"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe(schema.StoreTypings)
	defer cancel()

	bus.OnStoreChange(schema.StoreEvent{Store: schema.StoreTypings, Revision: 3})
	got := receive(t, ch)
	if got.Type != EventStore || got.Topic != schema.StoreTypings || got.Store.Revision != 3 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestTopicFiltering(t *testing.T) {
	bus := New(nil)
	tabs, cancelTabs := bus.Subscribe(schema.StoreTabs)
	defer cancelTabs()
	all, cancelAll := bus.Subscribe()
	defer cancelAll()

	bus.OnStoreChange(schema.StoreEvent{Store: schema.StoreVersion})
	bus.OnTabEvent(schema.TabEvent{VersionID: "v1", Type: schema.TabEventCreated})

	if got := receive(t, tabs); got.Type != EventTab || got.Tab.VersionID != "v1" {
		t.Fatalf("unexpected tab event: %+v", got)
	}
	select {
	case extra := <-tabs:
		t.Fatalf("did not expect version event on tabs topic: %+v", extra)
	default:
	}
	if got := receive(t, all); got.Topic != schema.StoreVersion {
		t.Fatalf("expected version event first, got %+v", got)
	}
	if got := receive(t, all); got.Topic != schema.StoreTabs {
		t.Fatalf("expected tab event second, got %+v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe(schema.StoreAuth, schema.StoreUtils)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	bus.mu.Lock()
	remaining := len(bus.subs)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no topics left, got %d", remaining)
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe(schema.StoreEnvironment)
	defer cancel()

	bus.OnStoreChange(schema.StoreEvent{Store: schema.StoreEnvironment})
	done := make(chan struct{})
	go func() {
		bus.OnStoreChange(schema.StoreEvent{Store: schema.StoreEnvironment})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
