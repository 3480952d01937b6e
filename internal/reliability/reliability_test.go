package reliability

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitACKSucceedsOnSignal(t *testing.T) {
	r := New()
	var sent int32

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Signal("msg-1")
	}()

	err := r.AwaitACK("msg-1", func() error {
		atomic.AddInt32(&sent, 1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), sent)
	assert.Equal(t, 0, r.Pending())
}

func TestAwaitACKExhaustsAfterRetries(t *testing.T) {
	r := New()
	start := time.Now()
	var sent int32
	err := r.await("msg-2", func() error {
		atomic.AddInt32(&sent, 1)
		return nil
	}, 3, 20*time.Millisecond)

	elapsed := time.Since(start)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(3), sent, "must send exactly RetryCount times")
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Equal(t, 0, r.Pending(), "waiter must be removed after exhaustion")
}

func TestAwaitACKSendErrorRemovesWaiter(t *testing.T) {
	r := New()
	sendErr := errors.New("boom")
	err := r.AwaitACK("msg-3", func() error { return sendErr })

	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, 0, r.Pending())
}

func TestSignalUnmatchedIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.Signal("no-such-waiter"))
}

func TestUnblocksWithinRetryBudget(t *testing.T) {
	r := New()
	start := time.Now()
	err := r.await("msg-4", func() error { return nil }, 3, 15*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.LessOrEqual(t, elapsed, 3*15*time.Millisecond+50*time.Millisecond)
}
