package core

import "pkt.systems/studiosync/schema"

// EventSink receives tab events from the tab session manager.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
}
