package promise

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndWait(t *testing.T) {
	pool := NewPool(2, 4)
	defer pool.Shutdown()

	f := Submit(pool, func() (int, error) {
		return 42, nil
	})
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	// waiting again returns the same result
	v, err = f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitError(t *testing.T) {
	pool := NewPool(1, 0)
	defer pool.Shutdown()

	boom := errors.New("boom")
	f := Submit(pool, func() (struct{}, error) {
		return struct{}{}, boom
	})
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestWaitContextCancelled(t *testing.T) {
	pool := NewPool(1, 0)
	defer pool.Shutdown()

	release := make(chan struct{})
	var ran atomic.Bool
	f := Submit(pool, func() (int, error) {
		<-release
		ran.Store(true)
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// the task still runs to completion after the caller gave up
	close(release)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, ran.Load())
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(1, 0)
	pool.Shutdown()

	f := Submit(pool, func() (int, error) { return 1, nil })
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestShutdownDrainsQueue(t *testing.T) {
	pool := NewPool(1, 8)
	var count atomic.Int32
	futures := make([]*Future[int], 0, 8)
	for i := 0; i < 8; i++ {
		futures = append(futures, Submit(pool, func() (int, error) {
			time.Sleep(time.Millisecond)
			count.Add(1)
			return 0, nil
		}))
	}
	pool.Shutdown()
	assert.Equal(t, int32(8), count.Load())
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		assert.NoError(t, err)
	}
}

func TestResolved(t *testing.T) {
	f := Resolved(7, nil)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
