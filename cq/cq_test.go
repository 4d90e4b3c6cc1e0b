package cq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flagEvent struct {
	completed bool
	ok        bool
}

func (e *flagEvent) Complete(ok bool) {
	e.completed = true
	e.ok = ok
}

func TestEmptyQueueTimesOut(t *testing.T) {
	q := New()
	_, _, st := q.AsyncNext()
	assert.Equal(t, Timeout, st)
}

func TestDeliverThenPoll(t *testing.T) {
	q := New()
	e := &flagEvent{}
	q.Register()
	q.Deliver(e, true)

	ev, ok, st := q.AsyncNext()
	require.Equal(t, GotEvent, st)
	assert.True(t, ok)
	ev.Complete(ok)
	assert.True(t, e.completed)
	assert.True(t, e.ok)
}

func TestFIFODelivery(t *testing.T) {
	q := New()
	a, b := &flagEvent{}, &flagEvent{}
	q.Register()
	q.Register()
	q.Deliver(a, true)
	q.Deliver(b, false)

	ev, ok, st := q.AsyncNext()
	require.Equal(t, GotEvent, st)
	assert.Same(t, Event(a), ev)
	assert.True(t, ok)

	ev, ok, st = q.AsyncNext()
	require.Equal(t, GotEvent, st)
	assert.Same(t, Event(b), ev)
	assert.False(t, ok)
}

func TestShutdownReportedOnlyAfterDrain(t *testing.T) {
	q := New()
	e := &flagEvent{}
	q.Register()
	q.Deliver(e, true)
	q.ShutDown()

	// Backlog drains first.
	_, _, st := q.AsyncNext()
	require.Equal(t, GotEvent, st)

	_, _, st = q.AsyncNext()
	assert.Equal(t, Shutdown, st)
}

func TestShutdownWaitsForOutstanding(t *testing.T) {
	q := New()
	q.Register()
	q.ShutDown()

	// The registered operation has not delivered yet; the queue is not
	// drained and must not report Shutdown.
	_, _, st := q.AsyncNext()
	assert.Equal(t, Timeout, st)

	e := &flagEvent{}
	q.Deliver(e, false)
	_, ok, st := q.AsyncNext()
	require.Equal(t, GotEvent, st)
	assert.False(t, ok)

	_, _, st = q.AsyncNext()
	assert.Equal(t, Shutdown, st)
}

func TestShutdownCancelsContext(t *testing.T) {
	q := New()
	select {
	case <-q.Context().Done():
		t.Fatal("context done before shutdown")
	default:
	}
	q.ShutDown()
	q.ShutDown() // idempotent
	assert.True(t, q.IsShutDown())

	select {
	case <-q.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by shutdown")
	}
}

func poll(t *testing.T, q *Queue, timeout time.Duration) (Event, bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ev, ok, st := q.AsyncNext()
		if st == GotEvent {
			return ev, ok
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no event before timeout")
	return nil, false
}

func TestAlarmFires(t *testing.T) {
	q := New()
	var fired bool
	NewAlarm(q, time.Now().Add(10*time.Millisecond), func(ok bool) { fired = ok })

	ev, ok := poll(t, q, 2*time.Second)
	ev.Complete(ok)
	assert.True(t, fired)
}

func TestAlarmCancelledByShutdown(t *testing.T) {
	q := New()
	var fired, completed bool
	NewAlarm(q, time.Now().Add(time.Hour), func(ok bool) {
		completed = true
		fired = ok
	})
	q.ShutDown()

	ev, ok := poll(t, q, 2*time.Second)
	ev.Complete(ok)
	assert.True(t, completed)
	assert.False(t, fired)

	_, _, st := q.AsyncNext()
	assert.Equal(t, Shutdown, st)
}

func TestAlarmInThePastFiresPromptly(t *testing.T) {
	q := New()
	var fired bool
	NewAlarm(q, time.Now().Add(-time.Second), func(ok bool) { fired = ok })

	ev, ok := poll(t, q, 2*time.Second)
	ev.Complete(ok)
	assert.True(t, fired)
}
