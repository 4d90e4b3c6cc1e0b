package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type jsonEnvelope struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (e *jsonEnvelope) MarshalEnvelope() ([]byte, error)    { return json.Marshal(e) }
func (e *jsonEnvelope) UnmarshalEnvelope(data []byte) error { return json.Unmarshal(data, e) }

func TestProtoMessageRoundTrip(t *testing.T) {
	c := Codec{}

	data, err := c.Marshal(wrapperspb.String("hello"))
	require.NoError(t, err)

	out := &wrapperspb.StringValue{}
	require.NoError(t, c.Unmarshal(data, out))
	assert.True(t, proto.Equal(wrapperspb.String("hello"), out))
}

func TestOpaqueEnvelopeRoundTrip(t *testing.T) {
	c := Codec{}

	data, err := c.Marshal(&jsonEnvelope{Name: "n", Count: 3})
	require.NoError(t, err)

	out := &jsonEnvelope{}
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, &jsonEnvelope{Name: "n", Count: 3}, out)
}

func TestUnsupportedTypeRejected(t *testing.T) {
	c := Codec{}

	_, err := c.Marshal(42)
	assert.Error(t, err)

	assert.Error(t, c.Unmarshal(nil, &struct{}{}))
}

func TestName(t *testing.T) {
	assert.Equal(t, "sgrpc", Codec{}.Name())
}
