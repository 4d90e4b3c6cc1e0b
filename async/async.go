// Package async is the sender/receiver model the runtime composes RPC work
// with.
//
// A Sender is a lazy description of an asynchronous computation. Connecting
// it with a Receiver yields an Operation; starting the operation eventually
// delivers exactly one of SetValue, SetError, or SetStopped on the receiver.
// The runtime's execution context injects arbitrary compositions onto its
// worker pool through the schedule sender; the rpc and server packages wrap
// client calls and handler logic as senders.
package async

import (
	"sync"

	"github.com/teranos/sgrpc/status"
)

// Receiver is the downstream endpoint of a sender. Exactly one of the three
// completion methods is invoked, exactly once.
type Receiver[T any] interface {
	SetValue(T)
	SetError(status.Status)
	SetStopped()
}

// Operation is the started or startable form of a sender-plus-receiver pair.
type Operation interface {
	Start()
}

// Sender describes an asynchronous computation producing a T.
type Sender[T any] interface {
	Connect(Receiver[T]) Operation
}

// FuncReceiver adapts plain funcs to Receiver. Nil members discard their
// completion.
type FuncReceiver[T any] struct {
	OnValue   func(T)
	OnError   func(status.Status)
	OnStopped func()
}

func (r FuncReceiver[T]) SetValue(v T) {
	if r.OnValue != nil {
		r.OnValue(v)
	}
}

func (r FuncReceiver[T]) SetError(st status.Status) {
	if r.OnError != nil {
		r.OnError(st)
	}
}

func (r FuncReceiver[T]) SetStopped() {
	if r.OnStopped != nil {
		r.OnStopped()
	}
}

type funcOperation func()

func (op funcOperation) Start() { op() }

// SenderFunc builds a Sender from a connect function.
type SenderFunc[T any] func(Receiver[T]) Operation

func (f SenderFunc[T]) Connect(r Receiver[T]) Operation { return f(r) }

// Just produces a sender that immediately delivers v.
func Just[T any](v T) Sender[T] {
	return SenderFunc[T](func(r Receiver[T]) Operation {
		return funcOperation(func() { r.SetValue(v) })
	})
}

// Error produces a sender that immediately delivers st on the error channel.
func Error[T any](st status.Status) Sender[T] {
	return SenderFunc[T](func(r Receiver[T]) Operation {
		return funcOperation(func() { r.SetError(st) })
	})
}

// errorStatus maps a Go error raised inside a composition stage onto the
// sender error channel: a status.Status passes through verbatim, anything
// else is a logic failure.
func errorStatus(err error) status.Status {
	if st, ok := err.(status.Status); ok {
		return st
	}
	return status.New(status.Internal, err.Error())
}

// Then transforms the upstream value. An error from f flows to the error
// channel: a status.Status verbatim, any other error as Internal.
func Then[T, U any](s Sender[T], f func(T) (U, error)) Sender[U] {
	return SenderFunc[U](func(r Receiver[U]) Operation {
		return s.Connect(FuncReceiver[T]{
			OnValue: func(v T) {
				u, err := f(v)
				if err != nil {
					r.SetError(errorStatus(err))
					return
				}
				r.SetValue(u)
			},
			OnError:   r.SetError,
			OnStopped: r.SetStopped,
		})
	})
}

// LetValue chains the upstream value into a new sender, flattening the
// result. The inner sender starts as soon as the upstream value arrives.
func LetValue[T, U any](s Sender[T], f func(T) Sender[U]) Sender[U] {
	return SenderFunc[U](func(r Receiver[U]) Operation {
		return s.Connect(FuncReceiver[T]{
			OnValue: func(v T) {
				f(v).Connect(r).Start()
			},
			OnError:   r.SetError,
			OnStopped: r.SetStopped,
		})
	})
}

// UponError recovers the error channel into a value, leaving values and
// stops untouched.
func UponError[T any](s Sender[T], f func(status.Status) T) Sender[T] {
	return SenderFunc[T](func(r Receiver[T]) Operation {
		return s.Connect(FuncReceiver[T]{
			OnValue: r.SetValue,
			OnError: func(st status.Status) {
				r.SetValue(f(st))
			},
			OnStopped: r.SetStopped,
		})
	})
}

// WhenAll runs the senders concurrently and delivers their values in input
// order once every one has completed. If any sender errs, the combined
// sender delivers the first error instead; if none errs but one stops, it
// delivers stopped. Either way it completes only after all senders have
// settled.
func WhenAll[T any](senders ...Sender[T]) Sender[[]T] {
	return SenderFunc[[]T](func(r Receiver[[]T]) Operation {
		return funcOperation(func() {
			n := len(senders)
			if n == 0 {
				r.SetValue(nil)
				return
			}

			var mu sync.Mutex
			values := make([]T, n)
			remaining := n
			var firstErr *status.Status
			stopped := false

			settle := func() {
				remaining--
				if remaining > 0 {
					return
				}
				switch {
				case firstErr != nil:
					r.SetError(*firstErr)
				case stopped:
					r.SetStopped()
				default:
					r.SetValue(values)
				}
			}

			for i, s := range senders {
				i := i
				s.Connect(FuncReceiver[T]{
					OnValue: func(v T) {
						mu.Lock()
						defer mu.Unlock()
						values[i] = v
						settle()
					},
					OnError: func(st status.Status) {
						mu.Lock()
						defer mu.Unlock()
						if firstErr == nil {
							firstErr = &st
						}
						settle()
					},
					OnStopped: func() {
						mu.Lock()
						defer mu.Unlock()
						stopped = true
						settle()
					},
				}).Start()
			}
		})
	})
}

// StartDetached connects the sender to a discarding receiver and starts it.
// Completions are dropped on the floor; the computation runs for its side
// effects.
func StartDetached[T any](s Sender[T]) {
	s.Connect(FuncReceiver[T]{}).Start()
}

// Wait connects, starts, and blocks until the sender completes. Test and
// demo-binary convenience; worker loops must never call it.
func Wait[T any](s Sender[T]) (value T, st status.Status, ok bool) {
	done := make(chan struct{})
	s.Connect(FuncReceiver[T]{
		OnValue: func(v T) {
			value, ok = v, true
			close(done)
		},
		OnError: func(e status.Status) {
			st = e
			close(done)
		},
		OnStopped: func() {
			st = status.New(status.Cancelled, "computation stopped")
			close(done)
		},
	}).Start()
	<-done
	return value, st, ok
}
