package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// Stream event types.
const (
	StreamStore   = "store"
	StreamTab     = "tab"
	StreamTypings = "typings"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64           `json:"seq"`
	Type      string           `json:"type"`
	Store     schema.StoreName `json:"store,omitempty"`
	Revision  uint64           `json:"revision,omitempty"`
	State     any              `json:"state,omitempty"`
	TabEvent  string           `json:"tab_event,omitempty"`
	VersionID schema.VersionID `json:"version_id,omitempty"`
	Tab       *schema.Tab      `json:"tab,omitempty"`
	ActiveTab schema.TabID     `json:"active_tab,omitempty"`
	Path      string           `json:"path,omitempty"`
	Library   string           `json:"library,omitempty"`
	Source    string           `json:"source,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub broadcasts store, tab and typings events to stream subscribers.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         logger,
	}
}

// OnStoreChange implements store.Observer.
func (h *Hub) OnStoreChange(event schema.StoreEvent) {
	h.log.Trace("hub store event", "store", event.Store, "revision", event.Revision)
	h.publish(StreamEvent{
		Type:      StreamStore,
		Store:     event.Store,
		Revision:  event.Revision,
		State:     event.State,
		Timestamp: time.Now(),
	})
}

// OnTabEvent implements core.EventSink.
func (h *Hub) OnTabEvent(event schema.TabEvent) {
	h.log.Trace("hub tab event", "version", event.VersionID, "type", event.Type, "tab", event.Tab.ID, "active", event.ActiveTab)
	stream := StreamEvent{
		Type:      StreamTab,
		TabEvent:  string(event.Type),
		VersionID: event.VersionID,
		ActiveTab: event.ActiveTab,
		Path:      event.Path,
		Timestamp: time.Now(),
	}
	if event.Tab.ID != "" {
		tab := event.Tab
		stream.Tab = &tab
	}
	h.publish(stream)
}

// RegisterLibrary implements typings.Registry by streaming the fragment to the editor.
func (h *Hub) RegisterLibrary(ctx context.Context, name, source string) {
	pslog.Ctx(ctx).Debug("hub typings registered", "library", name, "bytes", len(source))
	h.publish(StreamEvent{
		Type:      StreamTypings,
		Library:   name,
		Source:    source,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber and returns the current seq with the retained history.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	seq := h.seq
	h.log.Info("hub subscribe", "subs", len(h.subs), "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events))
	return events
}

// Seq returns the last published sequence number.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
