package core

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"pkt.systems/studiosync/schema"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newTabID returns a strictly increasing identifier; ids are never reused.
func newTabID() schema.TabID {
	idMu.Lock()
	defer idMu.Unlock()
	return schema.TabID(ulid.MustNew(ulid.Now(), idEntropy).String())
}
