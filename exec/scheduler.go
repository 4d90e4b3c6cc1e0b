package exec

import (
	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/status"
)

// Scheduler adapts a context into the sender/receiver model. It is a copyable
// value; two schedulers compare equal exactly when they share a context.
type Scheduler struct {
	ctx *Context
}

// Scheduler returns a scheduler bound to this context.
func (c *Context) Scheduler() Scheduler { return Scheduler{ctx: c} }

// Context returns the borrowed execution context.
func (s Scheduler) Context() *Context { return s.ctx }

// Schedule returns the sender that moves downstream work onto the context:
// starting it posts a receiver completion onto the task-stealing queue. This
// is the single injection point by which arbitrary sender compositions are
// moved onto the runtime.
//
// If the context refuses the post (stopping or stopped), the receiver
// observes Unavailable on the error channel.
func (s Scheduler) Schedule() async.Sender[struct{}] {
	ctx := s.ctx
	return async.SenderFunc[struct{}](func(r async.Receiver[struct{}]) async.Operation {
		return scheduleOperation{ctx: ctx, recv: r}
	})
}

type scheduleOperation struct {
	ctx  *Context
	recv async.Receiver[struct{}]
}

func (op scheduleOperation) Start() {
	recv := op.recv
	if !op.ctx.Post(func() { recv.SetValue(struct{}{}) }) {
		recv.SetError(status.New(status.Unavailable, "execution context is not accepting work"))
	}
}
