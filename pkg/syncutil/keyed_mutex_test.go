package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex(0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "student-1")
			if err != nil {
				return
			}
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestKeyedMutex_CancelWhileWaiting(t *testing.T) {
	m := NewKeyedMutex(1)

	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Lock(ctx, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	again, err := m.Lock(context.Background(), "b")
	require.NoError(t, err)
	again()
}

func TestKeyedMutex_CancelledContextFailsFast(t *testing.T) {
	m := NewKeyedMutex(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Lock(ctx, "free-key")
	assert.ErrorIs(t, err, context.Canceled)
}
