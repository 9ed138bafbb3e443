package studiosync

import (
	"pkt.systems/studiosync/core"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

type storeFanout struct {
	observers []store.Observer
}

func (f storeFanout) OnStoreChange(event schema.StoreEvent) {
	for _, obs := range f.observers {
		if obs == nil {
			continue
		}
		obs.OnStoreChange(event)
	}
}
