// Package exec implements the execution context: the engine owning worker
// goroutines, the task-stealing queue, and the completion queues that client
// and server RPC operations are registered with.
package exec

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/errors"
	"github.com/teranos/sgrpc/task"
)

// State is the context lifecycle. Transitions are monotonic:
// Ready -> Running -> ShuttingDown -> Stopped. A stopped context cannot be
// restarted.
type State int32

const (
	Ready State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	}
	return "invalid"
}

// Server is a server container attached to the context: its completion
// queues are polled by the workers and its lifetime extends through Stop.
type Server interface {
	// CompletionQueues returns the container's work queues.
	CompletionQueues() []*cq.Queue
	// Shutdown stops accepting transport calls. Called by Context.Stop
	// before the work queues are shut down; must be idempotent.
	Shutdown()
}

// backoff between empty polls of every work source.
const pollBackoff = time.Millisecond

// Context is the runtime root.
type Context struct {
	workers      int
	tasks        *task.Queue
	clientQueues []*cq.Queue

	state  atomic.Int32
	inPost atomic.Int64
	nextCQ atomic.Uint64

	mu           sync.Mutex
	serverQueues []*cq.Queue
	servers      []Server
	notify       []func()
	runCalled    bool

	wg      sync.WaitGroup
	stopped chan struct{}

	log *zap.SugaredLogger
}

// Option configures a Context.
type Option func(*Context)

// WithLogger installs a logger for debug-level lifecycle tracing. The
// context never logs on failure paths; statuses flow through senders.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Context) { c.log = log }
}

// New creates a context with the given worker count, creating queueCount
// client-side completion queues.
func New(workers, queueCount int, opts ...Option) (*Context, error) {
	if queueCount < 1 {
		return nil, errors.New("execution context requires at least one completion queue")
	}
	queues := make([]*cq.Queue, queueCount)
	for i := range queues {
		queues[i] = cq.New()
	}
	return NewWithQueues(workers, queues, opts...)
}

// NewWithQueues creates a context that adopts an explicit collection of
// client-side completion queues. The context owns them from here on.
func NewWithQueues(workers int, queues []*cq.Queue, opts ...Option) (*Context, error) {
	if workers < 1 {
		return nil, errors.New("execution context requires at least one worker")
	}
	if len(queues) == 0 {
		return nil, errors.New("execution context requires at least one completion queue")
	}
	c := &Context{
		workers:      workers,
		tasks:        task.New(workers + 1),
		clientQueues: queues,
		stopped:      make(chan struct{}),
		log:          zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the observed lifecycle state.
func (c *Context) State() State { return State(c.state.Load()) }

// IsStopped reports whether the context has fully stopped.
func (c *Context) IsStopped() bool { return c.State() == Stopped }

// AttachServer registers a server container so its completion queues are
// polled and its lifetime extends until Stop returns. Must happen before Run.
func (c *Context) AttachServer(s Server) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != Ready {
		return errors.Newf("cannot attach server in state %q", c.State())
	}
	c.servers = append(c.servers, s)
	c.serverQueues = append(c.serverQueues, s.CompletionQueues()...)
	return nil
}

// NotifyAtStopped registers a thunk fired after the context reaches Stopped.
// Thunks fire in insertion order. Registering on an already-stopped context
// fires the thunk immediately.
func (c *Context) NotifyAtStopped(fn func()) {
	c.mu.Lock()
	if c.State() != Stopped {
		c.notify = append(c.notify, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Post enqueues a parameterless callable onto the task-stealing queue.
// Returns whether the queue accepted it.
func (c *Context) Post(fn func()) bool {
	if c.State() > Running {
		return false
	}
	return c.tasks.Push(fn)
}

// PostAt schedules fn on a round-robin-selected completion queue, to fire at
// the deadline with true, or with false if queue shutdown cancels it first.
// A deadline already in the past degenerates to an immediate task post
// carrying false.
func (c *Context) PostAt(deadline time.Time, fn func(fired bool)) bool {
	c.inPost.Add(1)
	defer c.inPost.Add(-1)
	if c.State() > Running {
		return false
	}
	if !deadline.After(time.Now()) {
		return c.tasks.Push(func() { fn(false) })
	}
	cq.NewAlarm(c.nextQueue(), deadline, fn)
	return true
}

// PostAfter is PostAt with a relative deadline.
func (c *Context) PostAfter(d time.Duration, fn func(fired bool)) bool {
	return c.PostAt(time.Now().Add(d), fn)
}

// PostRPC invokes the factory with a round-robin-selected completion queue
// to produce a heap-owned completion-queue event, surrendering ownership to
// the queue's event graph. Returns false, without invoking the factory, if
// the context is past Running.
func (c *Context) PostRPC(factory func(*cq.Queue) cq.Event) bool {
	c.inPost.Add(1)
	defer c.inPost.Add(-1)
	if c.State() > Running {
		return false
	}
	factory(c.nextQueue())
	return true
}

// nextQueue spreads posts across the client completion queues. The counter
// is relaxed; approximate round-robin is all that is wanted.
func (c *Context) nextQueue() *cq.Queue {
	n := c.nextCQ.Add(1)
	return c.clientQueues[n%uint64(len(c.clientQueues))]
}

// Run transitions to Running and spawns the worker pool. Returns
// immediately; an error means the context was not Ready.
func (c *Context) Run() error {
	return c.RunWhile(nil)
}

// RunWhile is Run with a cooperative-cancellation predicate: each worker
// evaluates pred every iteration and initiates shutdown when it returns
// true.
func (c *Context) RunWhile(pred func() bool) error {
	if !c.state.CompareAndSwap(int32(Ready), int32(Running)) {
		return errors.Newf("cannot run in state %q", c.State())
	}

	c.mu.Lock()
	c.runCalled = true
	serverQueues := make([]*cq.Queue, len(c.serverQueues))
	copy(serverQueues, c.serverQueues)
	c.mu.Unlock()

	c.log.Debugw("execution context running",
		"workers", c.workers,
		"client_queues", len(c.clientQueues),
		"server_queues", len(serverQueues))

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(i, pred, serverQueues)
	}
	go func() {
		c.wg.Wait()
		c.finalize()
	}()
	return nil
}

// Stop is idempotent: it initiates shutdown if nobody has, then blocks
// until the context reaches Stopped and the notify thunks have fired.
func (c *Context) Stop() {
	c.initiate()

	c.mu.Lock()
	ran := c.runCalled
	c.mu.Unlock()
	if !ran {
		// No workers were ever spawned; finalize on the caller.
		c.finalize()
	}
	<-c.stopped
}

// initiate performs the one-shot half of the shutdown protocol: a monotonic
// state transition, a busy-wait for in-progress posts to drain, then queue
// shutdown. This ordering guarantees no event is registered after its queue
// has been shut down.
func (c *Context) initiate() {
	if !c.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) &&
		!c.state.CompareAndSwap(int32(Ready), int32(ShuttingDown)) {
		return
	}
	c.log.Debugw("execution context shutting down")

	for c.inPost.Load() > 0 {
		runtime.Gosched()
	}

	c.mu.Lock()
	servers := c.servers
	serverQueues := c.serverQueues
	c.mu.Unlock()

	for _, s := range servers {
		s.Shutdown()
	}
	for _, q := range c.clientQueues {
		q.ShutDown()
	}
	for _, q := range serverQueues {
		q.ShutDown()
	}
	c.tasks.SignalDone()
}

// finalize may run more than once (the supervisor, and each Stop that finds
// Run was never called) but the state store and notify sweep are both
// idempotent under the mutex.
func (c *Context) finalize() {
	for _, thunk := range c.tasks.DrainAndEject() {
		thunk()
	}

	c.mu.Lock()
	if c.State() == Stopped {
		c.mu.Unlock()
		return
	}
	c.state.Store(int32(Stopped))
	notify := c.notify
	c.notify = nil
	c.mu.Unlock()

	c.log.Debugw("execution context stopped")
	for _, fn := range notify {
		fn()
	}
	close(c.stopped)
}

// worker is the loop body every pool goroutine runs. Each iteration polls
// the predicate, then the client queues, then the server queues, then the
// task queue, and sleeps briefly when every source is dry. The loop exits
// once every completion queue reports Shutdown; the task queue is drained
// in place on the way out.
func (c *Context) worker(id int, pred func() bool, serverQueues []*cq.Queue) {
	defer c.wg.Done()

	total := len(c.clientQueues) + len(serverQueues)

	for {
		if pred != nil && pred() {
			c.initiate()
		}

		didWork := false
		shutdownCount := 0

		poll := func(queues []*cq.Queue) {
			for i := range queues {
				q := queues[(id+i)%len(queues)]
				ev, ok, st := q.AsyncNext()
				switch st {
				case cq.GotEvent:
					ev.Complete(ok)
					didWork = true
					return
				case cq.Shutdown:
					shutdownCount++
				}
			}
		}

		poll(c.clientQueues)
		if !didWork {
			poll(serverQueues)
		}
		if !didWork && shutdownCount == total {
			break
		}

		if !didWork {
			if thunk, ok := c.tasks.TryPop(); ok {
				thunk()
				didWork = true
			}
		}
		if !didWork {
			time.Sleep(pollBackoff)
		}
	}

	for {
		thunk, ok := c.tasks.TryPop()
		if !ok {
			return
		}
		thunk()
	}
}
