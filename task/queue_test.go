package task

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushThenPop(t *testing.T) {
	q := New(4)
	var ran bool
	require.True(t, q.Push(func() { ran = true }))

	thunk, ok := q.TryPop()
	require.True(t, ok)
	thunk()
	assert.True(t, ran)

	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestRoughFIFOSingleShard(t *testing.T) {
	q := New(1)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, q.Push(func() { got = append(got, i) }))
	}
	for {
		thunk, ok := q.TryPop()
		if !ok {
			break
		}
		thunk()
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestPushAfterDoneFails(t *testing.T) {
	q := New(2)
	q.SignalDone()
	assert.False(t, q.Push(func() {}))
	assert.True(t, q.Done())

	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestDrainAndEjectReturnsRemainder(t *testing.T) {
	q := New(3)
	for i := 0; i < 10; i++ {
		require.True(t, q.Push(func() {}))
	}
	_, ok := q.TryPop()
	require.True(t, ok)

	remainder := q.DrainAndEject()
	assert.Len(t, remainder, 9)
}

// Every thunk for which Push returned true is either observed by TryPop or
// returned by DrainAndEject; none is lost, none is duplicated.
func TestNoTaskLostUnderConcurrency(t *testing.T) {
	const pushers = 8
	const perPusher = 500

	q := New(pushers + 1)

	var pushed atomic.Int64
	var executed atomic.Int64

	var wg sync.WaitGroup
	stopPop := make(chan struct{})

	// Concurrent poppers.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopPop:
					return
				default:
				}
				if thunk, ok := q.TryPop(); ok {
					thunk()
				}
			}
		}()
	}

	// Concurrent pushers; all of them finish before done is signalled.
	var pushWG sync.WaitGroup
	for i := 0; i < pushers; i++ {
		pushWG.Add(1)
		go func() {
			defer pushWG.Done()
			for j := 0; j < perPusher; j++ {
				if q.Push(func() { executed.Add(1) }) {
					pushed.Add(1)
				}
			}
		}()
	}

	pushWG.Wait()
	remainder := q.DrainAndEject()
	close(stopPop)
	wg.Wait()

	// The poppers may have a popped-but-not-yet-run thunk in hand; they have
	// all returned by now, so executed is final.
	total := executed.Load() + int64(len(remainder))
	assert.Equal(t, pushed.Load(), total)
}

func TestDrainRacesPush(t *testing.T) {
	q := New(4)

	var accepted atomic.Int64
	var pushWG sync.WaitGroup
	for i := 0; i < 8; i++ {
		pushWG.Add(1)
		go func() {
			defer pushWG.Done()
			for j := 0; j < 200; j++ {
				if q.Push(func() {}) {
					accepted.Add(1)
				}
			}
		}()
	}

	remainder := q.DrainAndEject()
	first := int64(len(remainder))
	pushWG.Wait()

	// Pushes that were in flight when done was signalled either made it into
	// the drained set or reported failure; a second drain finds nothing new.
	assert.Empty(t, q.DrainAndEject())
	assert.Equal(t, accepted.Load(), first)
}

func TestZeroShardCountRaisedToOne(t *testing.T) {
	q := New(0)
	require.True(t, q.Push(func() {}))
	_, ok := q.TryPop()
	assert.True(t, ok)
}
