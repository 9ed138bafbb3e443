package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// allTopics subscribes to every topic.
const allTopics schema.StoreName = ""

// EventType identifies the event payload.
type EventType string

const (
	// EventStore carries a store change.
	EventStore EventType = "store"
	// EventTab carries a tab lifecycle update.
	EventTab EventType = "tab"
)

// Event represents a change published to subscribers.
type Event struct {
	Type  EventType
	Topic schema.StoreName
	Store schema.StoreEvent
	Tab   schema.TabEvent
}

// Bus fans out events to per-topic subscribers. Tab events use the tabs topic.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.StoreName]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.StoreName]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for topics (every topic when none are
// given) and returns a channel + cancel.
func (b *Bus) Subscribe(topics ...schema.StoreName) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	if len(topics) == 0 {
		topics = []schema.StoreName{allTopics}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	for _, topic := range topics {
		topicSubs := b.subs[topic]
		if topicSubs == nil {
			topicSubs = make(map[chan Event]struct{})
			b.subs[topic] = topicSubs
		}
		topicSubs[ch] = struct{}{}
	}
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "topics", topics)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			for _, topic := range topics {
				if subs := b.subs[topic]; subs != nil {
					delete(subs, ch)
					if len(subs) == 0 {
						delete(b.subs, topic)
					}
				}
			}
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe", "topics", topics)
			}
		})
	}
}

// OnStoreChange publishes a store change on the store's topic.
func (b *Bus) OnStoreChange(event schema.StoreEvent) {
	b.publish(Event{Type: EventStore, Topic: event.Store, Store: event})
}

// OnTabEvent publishes a tab event on the tabs topic.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(Event{Type: EventTab, Topic: schema.StoreTabs, Tab: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs[event.Topic])+len(b.subs[allTopics]))
	for sub := range b.subs[event.Topic] {
		subs = append(subs, sub)
	}
	for sub := range b.subs[allTopics] {
		if _, dup := b.subs[event.Topic][sub]; !dup {
			subs = append(subs, sub)
		}
	}
	// Sends happen under the lock so a concurrent cancel cannot close a
	// channel mid-send; every send is non-blocking.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "topic", event.Topic, "count", dropped)
	}
}
