// Package lock serializes erasure decisions per request. Acquire blocks
// until the lock is held or ctx expires: the second of two concurrent
// deciders must get the lock after the first commits, observe the terminal
// state, and fail with invalid_transition rather than a lock-busy error.
//
// InProcess is the single-instance implementation; Redis backs multi-instance
// deployments. The store's compare-and-set on status stays the commit point
// either way; the lock only keeps both deciders from racing their reads.
package lock

import (
	"context"
	"fmt"
	"sync"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Locker grants exclusive access to one erasure request's decision path.
type Locker interface {
	// Acquire blocks until the request lock is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, requestID id.RequestID) (release func(), err error)
}

// InProcess is a keyed mutex over request IDs.
type InProcess struct {
	mu   sync.Mutex
	held map[id.RequestID]chan struct{}
}

// NewInProcess creates an empty in-process locker.
func NewInProcess() *InProcess {
	return &InProcess{held: make(map[id.RequestID]chan struct{})}
}

// Acquire takes the per-request lock, waiting behind the current holder.
func (l *InProcess) Acquire(ctx context.Context, requestID id.RequestID) (func(), error) {
	for {
		l.mu.Lock()
		waiter, taken := l.held[requestID]
		if !taken {
			done := make(chan struct{})
			l.held[requestID] = done
			l.mu.Unlock()

			var once sync.Once
			release := func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, requestID)
					l.mu.Unlock()
					close(done)
				})
			}
			return release, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout,
				fmt.Sprintf("waiting for decision lock on request %s", requestID))
		case <-waiter:
			// Holder released; race for the lock again.
		}
	}
}
