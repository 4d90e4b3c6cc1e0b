// Package greeter is the example service hosted on the runtime: two unary
// methods over string envelopes, one handled in immediate mode and one as a
// sender composition.
package greeter

import (
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/cq"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/server"
	"github.com/teranos/sgrpc/status"
)

// ServiceName is the fully qualified transport service name.
const ServiceName = "greeting.Greeter"

// Full method names.
const (
	SayHelloMethod = "/" + ServiceName + "/SayHello"
	SayWorldMethod = "/" + ServiceName + "/SayWorld"
)

// Envelope is the wire type both methods use.
type Envelope = wrapperspb.StringValue

// Service bundles the transport service definition with its method bindings.
type Service struct {
	Svc      *server.Service
	SayHello *server.Method[Envelope, Envelope]
	SayWorld *server.Method[Envelope, Envelope]
}

// NewService assembles the greeter service definition.
func NewService() *Service {
	svc := server.NewService(ServiceName)
	return &Service{
		Svc:      svc,
		SayHello: server.RegisterUnary[Envelope, Envelope](svc, "SayHello"),
		SayWorld: server.RegisterUnary[Envelope, Envelope](svc, "SayWorld"),
	}
}

// Server is the application server: greeting logic, no transport types
// beyond the shared envelopes.
type Server struct{}

// HelloLogic greets in immediate mode: the response is produced on the
// worker that dequeued the request. An empty name is a client error.
func (s *Server) HelloLogic(_ *server.Context, req *Envelope) (*Envelope, error) {
	name := req.GetValue()
	if name == "" {
		return nil, status.New(status.InvalidArgument, "name must not be empty")
	}
	return wrapperspb.String(fmt.Sprintf("Hello, %s!", name)), nil
}

// WorldLogic greets in sender mode: the response is described as a sender
// and composed onto the scheduler.
func (s *Server) WorldLogic(_ *server.Context, req *Envelope) async.Sender[*Envelope] {
	name := req.GetValue()
	if name == "" {
		return async.Error[*Envelope](status.New(status.InvalidArgument, "name must not be empty"))
	}
	return async.Just(wrapperspb.String(fmt.Sprintf("World says hi, %s!", name)))
}

// Wire installs one handler per method on the given work queue.
func (g *Service) Wire(app *Server) server.WireFunc {
	return func(_ *server.Service, sched exec.Scheduler, q *cq.Queue) {
		server.NewHandler(sched, g.SayHello, app.HelloLogic, q)
		server.NewSenderHandler(sched, g.SayWorld, app.WorldLogic, q)
	}
}
