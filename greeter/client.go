package greeter

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/errors"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/rpc"
)

// Client is the wrapped greeter stub: callers compose senders of plain
// strings and never see the envelope types.
type Client struct {
	conn     *grpc.ClientConn
	sayHello *rpc.Stub[Envelope, Envelope]
	sayWorld *rpc.Stub[Envelope, Envelope]
}

// Dial connects to a greeter server.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to greeter at %s", target)
	}
	return &Client{
		conn:     conn,
		sayHello: rpc.NewStub[Envelope, Envelope](conn, SayHelloMethod),
		sayWorld: rpc.NewStub[Envelope, Envelope](conn, SayWorldMethod),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func unwrap(resp *Envelope) (string, error) { return resp.GetValue(), nil }

// SayHello describes one hello round trip on the given context.
func (c *Client) SayHello(ec *exec.Context, name string) async.Sender[string] {
	return rpc.Call(c.sayHello, ec, &Envelope{Value: name}, unwrap)
}

// SayWorld describes one world round trip on the given context.
func (c *Client) SayWorld(ec *exec.Context, name string) async.Sender[string] {
	return rpc.Call(c.sayWorld, ec, &Envelope{Value: name}, unwrap)
}
