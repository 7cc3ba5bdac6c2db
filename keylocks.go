package sidx

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const keyLockStripes = 64

// keyLocks serializes writers of the same primary key, so that reading the
// old record and replacing it form one step. Distinct keys may share a stripe.
type keyLocks struct {
	stripes [keyLockStripes]sync.Mutex
}

func (l *keyLocks) lock(keyRaw []byte) func() {
	m := &l.stripes[xxhash.Sum64(keyRaw)%keyLockStripes]
	m.Lock()
	return m.Unlock
}
