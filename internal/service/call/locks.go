package call

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// pairLocks serializes lifecycle events of the same caller/receiver pair
// without a global lock. Unrelated pairs may share a stripe.
type pairLocks struct {
	stripes []sync.Mutex
}

func newPairLocks(n int) *pairLocks {
	if n < 1 {
		n = 1
	}
	return &pairLocks{stripes: make([]sync.Mutex, n)}
}

func (l *pairLocks) lock(callerID, receiverID uuid.UUID) func() {
	var key [32]byte
	copy(key[:16], callerID[:])
	copy(key[16:], receiverID[:])
	mu := &l.stripes[xxhash.Sum64(key[:])%uint64(len(l.stripes))]
	mu.Lock()
	return mu.Unlock
}
