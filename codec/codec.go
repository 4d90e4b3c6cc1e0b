// Package codec carries request/response envelopes across the wire without
// the runtime caring what they are.
//
// Protobuf messages marshal through google.golang.org/protobuf; any other
// envelope type opts in by implementing Marshaler and Unmarshaler. The codec
// is installed per server (grpc.ForceServerCodec) and per call
// (grpc.ForceCodec) rather than globally registered.
package codec

import (
	"google.golang.org/protobuf/proto"

	"github.com/teranos/sgrpc/errors"
)

// Name identifies the codec on the wire.
const Name = "sgrpc"

// Marshaler is implemented by non-protobuf envelope types.
type Marshaler interface {
	MarshalEnvelope() ([]byte, error)
}

// Unmarshaler is implemented by non-protobuf envelope types.
type Unmarshaler interface {
	UnmarshalEnvelope([]byte) error
}

// Codec implements grpc encoding.Codec over opaque envelopes.
type Codec struct{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return proto.Marshal(m)
	case Marshaler:
		return m.MarshalEnvelope()
	}
	return nil, errors.Newf("codec: %T is neither a proto message nor a Marshaler", v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case proto.Message:
		return proto.Unmarshal(data, m)
	case Unmarshaler:
		return m.UnmarshalEnvelope(data)
	}
	return errors.Newf("codec: %T is neither a proto message nor an Unmarshaler", v)
}
