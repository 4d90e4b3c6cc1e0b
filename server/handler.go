package server

import (
	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/status"
)

// LogicFunc is immediate-mode handler logic: it runs on the worker that
// dequeued the request and returns the response directly. An error completes
// the call with the error's status (verbatim for a status.Status, Internal
// otherwise).
type LogicFunc[Req, Resp any] func(sctx *Context, req *Req) (*Resp, error)

// SenderLogicFunc is async handler logic: it describes the response as a
// sender, which the handler composes onto the scheduler and detaches.
type SenderLogicFunc[Req, Resp any] func(sctx *Context, req *Req) async.Sender[*Resp]

// ResponseWriter finishes one call: it hands the response (or error status)
// back to the transport and delivers the finish completion for tag.
type ResponseWriter[Resp any] struct {
	q    *cq.Queue
	ch   chan<- finishResult[Resp]
	done <-chan struct{}
}

// Finish writes the terminal outcome. ok=false is delivered for the finish
// leg when the caller went away before the response could be written.
func (w *ResponseWriter[Resp]) Finish(resp *Resp, st status.Status, tag cq.Event) {
	select {
	case w.ch <- finishResult[Resp]{resp: resp, st: st}:
		w.q.Deliver(tag, true)
	case <-w.done:
		w.q.Deliver(tag, false)
	}
}

// Handler services one class of unary requests on one service, on one
// completion queue. It is a completion-queue event owned by the queue's
// event graph: construction registers it as the tag for the next incoming
// request, the first ok completion spawns a sibling so the service stays
// continuously ready, and the second completion ends it.
type Handler[Req, Resp any] struct {
	sched       exec.Scheduler
	method      *Method[Req, Resp]
	logic       LogicFunc[Req, Resp]
	senderLogic SenderLogicFunc[Req, Resp]
	q           *cq.Queue

	// request slots, filled by the binding before the first completion
	sctx   *Context
	req    *Req
	writer *ResponseWriter[Resp]

	finishing bool
}

// NewHandler installs an immediate-mode handler for the method on q.
func NewHandler[Req, Resp any](sched exec.Scheduler, m *Method[Req, Resp], logic LogicFunc[Req, Resp], q *cq.Queue) *Handler[Req, Resp] {
	h := &Handler[Req, Resp]{sched: sched, method: m, logic: logic, q: q}
	m.bindRequest(h, q, h)
	return h
}

// NewSenderHandler installs an async handler for the method on q.
func NewSenderHandler[Req, Resp any](sched exec.Scheduler, m *Method[Req, Resp], logic SenderLogicFunc[Req, Resp], q *cq.Queue) *Handler[Req, Resp] {
	h := &Handler[Req, Resp]{sched: sched, method: m, senderLogic: logic, q: q}
	m.bindRequest(h, q, h)
	return h
}

// respawn installs the sibling with identical parameters.
func (h *Handler[Req, Resp]) respawn() {
	if h.logic != nil {
		NewHandler(h.sched, h.method, h.logic, h.q)
		return
	}
	NewSenderHandler(h.sched, h.method, h.senderLogic, h.q)
}

// Complete implements cq.Event.
//
// Awaiting-request phase: ok=false means the service is shutting down and
// the handler ends. Otherwise the sibling is spawned, the phase flips to
// finishing, and the logic runs; its outcome reaches the transport through
// the writer, with this handler as the finish tag.
//
// Finishing phase: the handler ends regardless of ok.
func (h *Handler[Req, Resp]) Complete(ok bool) {
	if h.finishing || !ok {
		return
	}

	h.respawn()
	h.finishing = true

	if h.logic != nil {
		resp, err := h.logic(h.sctx, h.req)
		if err != nil {
			h.writer.Finish(new(Resp), logicStatus(err), h)
			return
		}
		h.writer.Finish(resp, status.OK(), h)
		return
	}

	writer := h.writer
	work := async.UponError(
		async.Then(
			async.LetValue(h.sched.Schedule(), func(struct{}) async.Sender[*Resp] {
				return h.senderLogic(h.sctx, h.req)
			}),
			func(resp *Resp) (struct{}, error) {
				writer.Finish(resp, status.OK(), h)
				return struct{}{}, nil
			}),
		func(st status.Status) struct{} {
			writer.Finish(new(Resp), st, h)
			return struct{}{}
		})
	async.StartDetached(work)
}

// logicStatus maps an immediate-mode logic error onto the call's terminal
// status: a status.Status verbatim, anything else Internal.
func logicStatus(err error) status.Status {
	if st, ok := err.(status.Status); ok {
		return st
	}
	return status.Newf(status.Internal, "%v", err)
}
