// Package server hosts unary RPC methods on the execution runtime: a
// dynamically assembled transport service whose incoming calls rendezvous
// with self-recycling completion-queue handlers.
package server

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/status"
)

// Context is the server-side view of one incoming call.
type Context struct {
	ctx    context.Context
	callID string
	method string
}

// Ctx returns the transport's per-call context.
func (c *Context) Ctx() context.Context { return c.ctx }

// CallID is a unique identifier for this call, for logging and tracing.
func (c *Context) CallID() string { return c.callID }

// Method is the full method name, "/pkg.Service/Method".
func (c *Context) Method() string { return c.method }

// finishResult travels from ResponseWriter.Finish back to the transport
// handler goroutine.
type finishResult[Resp any] struct {
	resp *Resp
	st   status.Status
}

// call is one incoming request waiting for (or matched with) a handler.
type call[Req, Resp any] struct {
	sctx *Context
	req  *Req
	resp chan finishResult[Resp]
}

// Service is a dynamically assembled grpc service: methods are added with
// RegisterUnary before the service is bound to a transport server.
type Service struct {
	name    string
	methods []grpc.MethodDesc
}

// NewService creates a service with the given fully qualified name,
// e.g. "greeting.Greeter".
func NewService(name string) *Service {
	return &Service{name: name}
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Desc assembles the transport service descriptor. Called once, by the
// container, after every method has been registered.
func (s *Service) Desc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: s.name,
		HandlerType: (*any)(nil),
		Methods:     s.methods,
	}
}

// Method is one unary RPC method: the transport side decodes requests into
// it, and handler tags bind to it to receive them.
type Method[Req, Resp any] struct {
	fullName string
	calls    chan *call[Req, Resp]
}

// RegisterUnary adds a unary method to the service and returns the binding
// that handlers are constructed against.
func RegisterUnary[Req, Resp any](svc *Service, name string) *Method[Req, Resp] {
	m := &Method[Req, Resp]{
		fullName: "/" + svc.name + "/" + name,
		calls:    make(chan *call[Req, Resp]),
	}
	svc.methods = append(svc.methods, grpc.MethodDesc{
		MethodName: name,
		Handler:    m.transportHandler,
	})
	return m
}

// FullName returns "/pkg.Service/Method".
func (m *Method[Req, Resp]) FullName() string { return m.fullName }

// transportHandler is the grpc-side entry point: it decodes the request,
// hands it to whichever handler tag is listening on a work queue, and blocks
// until the handler finishes the response.
func (m *Method[Req, Resp]) transportHandler(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Req)
	if err := dec(req); err != nil {
		return nil, err
	}

	c := &call[Req, Resp]{
		sctx: &Context{ctx: ctx, callID: uuid.NewString(), method: m.fullName},
		req:  req,
		resp: make(chan finishResult[Resp], 1),
	}

	select {
	case m.calls <- c:
	case <-ctx.Done():
		return nil, grpcstatus.FromContextError(ctx.Err()).Err()
	}

	select {
	case res := <-c.resp:
		if !res.st.IsOK() {
			return nil, status.ToTransport(res.st).Err()
		}
		return res.resp, nil
	case <-ctx.Done():
		return nil, grpcstatus.FromContextError(ctx.Err()).Err()
	}
}

// bindRequest registers tag as the receiver of the next incoming call on q.
// When a call arrives, the binding fills the handler's slots, registers the
// pending finish leg, and delivers the tag with ok=true; queue shutdown
// delivers ok=false instead.
func (m *Method[Req, Resp]) bindRequest(h *Handler[Req, Resp], q *cq.Queue, tag cq.Event) {
	q.Register()
	go func() {
		select {
		case c := <-m.calls:
			h.sctx = c.sctx
			h.req = c.req
			h.writer = &ResponseWriter[Resp]{q: q, ch: c.resp, done: c.sctx.ctx.Done()}
			q.Register() // finish leg: keeps the queue undrained until Finish delivers
			q.Deliver(tag, true)
		case <-q.Context().Done():
			q.Deliver(tag, false)
		}
	}()
}
