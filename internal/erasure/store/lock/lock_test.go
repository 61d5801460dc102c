package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func TestInProcess_SerializesHolders(t *testing.T) {
	l := NewInProcess()
	requestID := id.NewRequestID()

	var inCritical int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), requestID)
			require.NoError(t, err)
			defer release()

			n := atomic.AddInt32(&inCritical, 1)
			if n > atomic.LoadInt32(&maxConcurrent) {
				atomic.StoreInt32(&maxConcurrent, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inCritical, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent, "two holders must never overlap")
}

func TestInProcess_IndependentRequestsDoNotBlock(t *testing.T) {
	l := NewInProcess()

	releaseA, err := l.Acquire(context.Background(), id.NewRequestID())
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, id.NewRequestID())
	require.NoError(t, err, "a different request's lock must be free")
	releaseB()
}

func TestInProcess_AcquireHonorsContext(t *testing.T) {
	l := NewInProcess()
	requestID := id.NewRequestID()

	release, err := l.Acquire(context.Background(), requestID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, requestID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestInProcess_ReleaseIsIdempotent(t *testing.T) {
	l := NewInProcess()
	requestID := id.NewRequestID()

	release, err := l.Acquire(context.Background(), requestID)
	require.NoError(t, err)
	release()
	release() // second call must be a no-op, not a panic or double close

	again, err := l.Acquire(context.Background(), requestID)
	require.NoError(t, err)
	again()
}
