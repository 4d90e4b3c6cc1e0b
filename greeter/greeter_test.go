package greeter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/server"
	"github.com/teranos/sgrpc/status"
)

func startGreeter(t *testing.T) (*exec.Context, *Client) {
	t.Helper()

	ec, err := exec.New(2, 1, exec.WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, err)

	app := &Server{}
	svc := NewService()
	container, err := server.Serve(ec, app, svc.Svc, svc.Wire(app), server.Options{
		WorkQueues: 2,
		Logger:     zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)
	require.NoError(t, ec.Run())
	t.Cleanup(ec.Stop)

	client, err := Dial(container.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return ec, client
}

func TestSayHello(t *testing.T) {
	ec, client := startGreeter(t)

	v, _, ok := async.Wait(client.SayHello(ec, "Ada"))
	require.True(t, ok)
	assert.Equal(t, "Hello, Ada!", v)
}

func TestSayWorld(t *testing.T) {
	ec, client := startGreeter(t)

	v, _, ok := async.Wait(client.SayWorld(ec, "Ada"))
	require.True(t, ok)
	assert.Equal(t, "World says hi, Ada!", v)
}

func TestEmptyNameRejected(t *testing.T) {
	ec, client := startGreeter(t)

	_, st, ok := async.Wait(client.SayHello(ec, ""))
	require.False(t, ok)
	assert.Equal(t, status.InvalidArgument, st.Code())

	_, st, ok = async.Wait(client.SayWorld(ec, ""))
	require.False(t, ok)
	assert.Equal(t, status.InvalidArgument, st.Code())
}

func TestConcurrentGreetings(t *testing.T) {
	ec, client := startGreeter(t)

	senders := make([]async.Sender[string], 0, 16)
	for i := 0; i < 8; i++ {
		senders = append(senders, client.SayHello(ec, "Ada"))
		senders = append(senders, client.SayWorld(ec, "Ada"))
	}
	values, _, ok := async.Wait(async.WhenAll(senders...))
	require.True(t, ok)
	require.Len(t, values, 16)
	for i, v := range values {
		if i%2 == 0 {
			assert.Equal(t, "Hello, Ada!", v)
		} else {
			assert.Equal(t, "World says hi, Ada!", v)
		}
	}
}
