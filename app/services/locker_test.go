package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "invoice_lock:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.slots)
}

func TestMemoryLockerHonorsContext(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()
}

func TestMemoryTokenStoreConsumesOnce(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	first, err := store.Consume(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Consume(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	consumed, err := store.IsConsumed(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestRedisLockerKeyUsesPrefix(t *testing.T) {
	locker := NewRedisLocker(nil, "kappa:", 0, 0)
	assert.Equal(t, "kappa:invoice:7", locker.key("invoice:7"))
	assert.Equal(t, 2*time.Minute, locker.ttl)
	assert.Equal(t, 100*time.Millisecond, locker.retry)

	bare := NewRedisLocker(nil, "", time.Second, time.Millisecond)
	assert.Equal(t, "invoice:7", bare.key("invoice:7"))
}
