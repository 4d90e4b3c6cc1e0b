package server

import (
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/teranos/sgrpc/codec"
	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/errors"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/logger"
)

// WireFunc installs handlers for each RPC method on one work queue. The
// container invokes it once per queue, so a service with H methods and K
// queues starts with H*K live handlers.
type WireFunc func(svc *Service, sched exec.Scheduler, q *cq.Queue)

// Options configures a container.
type Options struct {
	// WorkQueues is the number of server completion queues; must be at
	// least one.
	WorkQueues int
	// Port to listen on; zero picks a free port, reported by Port().
	Port int
	// Credentials for the transport server; nil means insecure.
	Credentials credentials.TransportCredentials
	// Logger for container lifecycle events; nil means the global logger.
	Logger *zap.SugaredLogger
}

// Container owns a service, its transport server, and its work queues. It
// attaches itself to the execution context so the queues are polled and the
// container lives at least until Stop returns.
type Container struct {
	svc        *Service
	app        any
	grpcServer *grpc.Server
	lis        net.Listener
	queues     []*cq.Queue
	port       int
	log        *zap.SugaredLogger

	shutdownOnce sync.Once
	stopOnce     sync.Once
}

// Serve builds and starts a container: it binds the listener, registers the
// service, creates the work queues, wires one set of handlers per queue, and
// attaches to the execution context. Must be called before ec.Run(). The app
// value is held alive for the container's lifetime; pass the application
// server whose methods the wiring closes over.
func Serve(ec *exec.Context, app any, svc *Service, wire WireFunc, opts Options) (*Container, error) {
	workQueues := opts.WorkQueues
	if workQueues < 1 {
		return nil, errors.New("server container requires at least one work queue")
	}

	creds := opts.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	lis, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on port %d", opts.Port)
	}

	c := &Container{
		svc:        svc,
		app:        app,
		grpcServer: grpc.NewServer(grpc.Creds(creds), grpc.ForceServerCodec(codec.Codec{})),
		lis:        lis,
		port:       lis.Addr().(*net.TCPAddr).Port,
		log:        log,
	}
	c.grpcServer.RegisterService(svc.Desc(), app)

	sched := ec.Scheduler()
	for i := 0; i < workQueues; i++ {
		q := cq.New()
		c.queues = append(c.queues, q)
		wire(svc, sched, q)
	}

	if err := ec.AttachServer(c); err != nil {
		c.grpcServer.Stop()
		_ = lis.Close()
		return nil, errors.Wrap(err, "failed to attach server container")
	}

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil {
			c.log.Warnw("transport server exited",
				logger.FieldService, svc.Name(),
				logger.FieldError, err)
		}
	}()

	c.log.Infow("server container listening",
		logger.FieldService, svc.Name(),
		logger.FieldPort, c.port,
		logger.FieldQueue, workQueues)

	return c, nil
}

// Port returns the actual bound port.
func (c *Container) Port() int { return c.port }

// Addr returns a dialable address for the bound port.
func (c *Container) Addr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(c.port))
}

// CompletionQueues implements exec.Server.
func (c *Container) CompletionQueues() []*cq.Queue { return c.queues }

// Shutdown implements exec.Server: the transport stops accepting calls and
// drains the ones in flight. Idempotent; invoked by Context.Stop before the
// work queues shut down.
func (c *Container) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.log.Debugw("server container shutting down",
			logger.FieldService, c.svc.Name(),
			logger.FieldPort, c.port)
		c.grpcServer.GracefulStop()
	})
}

// Stop shuts the container down independently of the execution context:
// the transport drains, then the work queues shut down so the remaining
// handler tags complete with ok=false.
func (c *Container) Stop() {
	c.stopOnce.Do(func() {
		c.Shutdown()
		for _, q := range c.queues {
			q.ShutDown()
		}
	})
}
