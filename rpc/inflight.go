// Package rpc turns client-side unary RPC invocations into values flowing
// through the sender/receiver composition.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/teranos/sgrpc/codec"
	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/status"
)

// InvokeFunc performs one unary round trip over the transport, filling resp.
type InvokeFunc[Req, Resp any] func(ctx context.Context, req *Req, resp *Resp) error

// Unary binds a client connection and full method name ("/pkg.Service/Method")
// into an InvokeFunc using the runtime's envelope codec.
func Unary[Req, Resp any](conn grpc.ClientConnInterface, fullMethod string) InvokeFunc[Req, Resp] {
	return func(ctx context.Context, req *Req, resp *Resp) error {
		return conn.Invoke(ctx, fullMethod, req, resp, grpc.ForceCodec(codec.Codec{}))
	}
}

// CompletionFunc receives the terminal result of an in-flight call, exactly
// once: ok=false means the completion queue shut the call down; otherwise st
// carries the transport outcome and resp the response envelope.
type CompletionFunc[Resp any] func(ok bool, st status.Status, resp *Resp)

// inflightCall is the completion-queue event encapsulating a single
// client-side request/response round trip. It owns the response and status
// slots; the queue's event graph owns the call until the completion is
// dequeued.
type inflightCall[Req, Resp any] struct {
	resp Resp
	st   status.Status
	done CompletionFunc[Resp]
}

// StartCall registers an in-flight call on the queue and begins the round
// trip. The transport runs on its own goroutine under the queue's context,
// so shutdown aborts the call and delivers ok=false.
func StartCall[Req, Resp any](q *cq.Queue, invoke InvokeFunc[Req, Resp], req *Req, done CompletionFunc[Resp]) cq.Event {
	call := &inflightCall[Req, Resp]{done: done}
	q.Register()
	go func() {
		err := invoke(q.Context(), req, &call.resp)
		if q.Context().Err() != nil {
			q.Deliver(call, false)
			return
		}
		call.st = status.FromError(err)
		q.Deliver(call, true)
	}()
	return call
}

// Complete implements cq.Event. Invoked once by whichever worker dequeues
// the completion; the call is dead afterwards.
func (c *inflightCall[Req, Resp]) Complete(ok bool) {
	c.done(ok, c.st, &c.resp)
}
