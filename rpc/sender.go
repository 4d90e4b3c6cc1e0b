package rpc

import (
	"google.golang.org/grpc"

	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/status"
)

// PureSender exposes the raw response envelope on its value channel. The
// context owns the completion queues, so only the context decides which
// queue the call goes on, and whether it goes on at all: starting the
// operation posts an rpc factory, and a refused post completes with
// Unavailable immediately.
type PureSender[Req, Resp any] struct {
	ctx    *exec.Context
	invoke InvokeFunc[Req, Resp]
	req    *Req
}

// NewPureSender describes a unary round trip on the given context.
func NewPureSender[Req, Resp any](ctx *exec.Context, invoke InvokeFunc[Req, Resp], req *Req) PureSender[Req, Resp] {
	return PureSender[Req, Resp]{ctx: ctx, invoke: invoke, req: req}
}

func (s PureSender[Req, Resp]) Connect(r async.Receiver[*Resp]) async.Operation {
	return pureOperation[Req, Resp]{sender: s, recv: r}
}

type pureOperation[Req, Resp any] struct {
	sender PureSender[Req, Resp]
	recv   async.Receiver[*Resp]
}

func (op pureOperation[Req, Resp]) Start() {
	recv := op.recv
	posted := op.sender.ctx.PostRPC(func(q *cq.Queue) cq.Event {
		return StartCall(q, op.sender.invoke, op.sender.req,
			func(ok bool, st status.Status, resp *Resp) {
				switch {
				case !ok:
					recv.SetError(status.New(status.Unavailable, "operation posted after shutdown"))
				case !st.IsOK():
					recv.SetError(st)
				default:
					recv.SetValue(resp)
				}
			})
	})
	if !posted {
		recv.SetError(status.New(status.Unavailable, "rpc was not scheduled"))
	}
}

// Stub is the wrapped form of a service-method binding: application code
// holds a Stub and composes Call senders without ever seeing the transport
// envelope types.
type Stub[Req, Resp any] struct {
	invoke InvokeFunc[Req, Resp]
}

// NewStub binds a connection and full method name.
func NewStub[Req, Resp any](conn grpc.ClientConnInterface, fullMethod string) *Stub[Req, Resp] {
	return &Stub[Req, Resp]{invoke: Unary[Req, Resp](conn, fullMethod)}
}

// NewStubFunc builds a stub from an arbitrary invoke function. Tests and
// in-process transports use this to bypass a real connection.
func NewStubFunc[Req, Resp any](invoke InvokeFunc[Req, Resp]) *Stub[Req, Resp] {
	return &Stub[Req, Resp]{invoke: invoke}
}

// Call produces the type-erased sender for one invocation: the value channel
// carries the converted Result, the error channel a status.Status. The
// conversion runs on the worker that dequeues the completion; a conversion
// error completes the receiver with Internal (or the error's own status when
// it is one).
func Call[Req, Resp, Result any](stub *Stub[Req, Resp], ctx *exec.Context, req *Req, convert func(*Resp) (Result, error)) async.Sender[Result] {
	return async.SenderFunc[Result](func(r async.Receiver[Result]) async.Operation {
		return wrappedOperation[Req, Resp, Result]{
			ctx:     ctx,
			invoke:  stub.invoke,
			req:     req,
			convert: convert,
			recv:    r,
		}
	})
}

type wrappedOperation[Req, Resp, Result any] struct {
	ctx     *exec.Context
	invoke  InvokeFunc[Req, Resp]
	req     *Req
	convert func(*Resp) (Result, error)
	recv    async.Receiver[Result]
}

func (op wrappedOperation[Req, Resp, Result]) Start() {
	recv := op.recv
	convert := op.convert
	posted := op.ctx.PostRPC(func(q *cq.Queue) cq.Event {
		return StartCall(q, op.invoke, op.req,
			func(ok bool, st status.Status, resp *Resp) {
				switch {
				case !ok:
					recv.SetError(status.New(status.Unavailable, "operation posted after shutdown"))
				case !st.IsOK():
					recv.SetError(st)
				default:
					result, err := convert(resp)
					if err != nil {
						recv.SetError(conversionStatus(err))
						return
					}
					recv.SetValue(result)
				}
			})
	})
	if !posted {
		recv.SetError(status.New(status.Unavailable, "rpc was not scheduled"))
	}
}

func conversionStatus(err error) status.Status {
	if st, ok := err.(status.Status); ok {
		return st
	}
	return status.Newf(status.Internal, "converting response envelope: %v", err)
}
