package payments

import (
	"sync"
)

// BillLocks is an in-process keyed guard: at most one holder per bill code.
// Acquisition is non-blocking so a duplicate callback delivery can be
// acknowledged immediately while the first delivery does the work. Callers
// must pair every successful TryAcquire with a deferred Release.
type BillLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewBillLocks() *BillLocks {
	return &BillLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the guard for the bill code without blocking. It returns
// false when another holder already has it.
func (l *BillLocks) TryAcquire(billCode string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[billCode]; ok {
		return false
	}
	l.held[billCode] = struct{}{}
	return true
}

// Release frees the guard. Releasing a code that is not held is a no-op so
// deferred releases are always safe.
func (l *BillLocks) Release(billCode string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, billCode)
}
