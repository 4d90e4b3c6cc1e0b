package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestRoundTripTransportCodes(t *testing.T) {
	for c := codes.OK; c <= codes.Unauthenticated; c++ {
		assert.Equal(t, c, ToTransportCode(FromTransportCode(c)), "code %v", c)
	}
}

func TestSentinelMapsToUnspecified(t *testing.T) {
	assert.Equal(t, Unspecified, FromTransportCode(transportSentinel))
	assert.Equal(t, transportSentinel, ToTransportCode(Unspecified))
	// Any unknown transport value also lands on Unspecified.
	assert.Equal(t, Unspecified, FromTransportCode(codes.Code(42)))
}

func TestLogicErrorMapsToInternal(t *testing.T) {
	assert.Equal(t, codes.Internal, ToTransportCode(LogicError))
}

func TestNewAndAccessors(t *testing.T) {
	st := New(NotFound, "m")
	assert.Equal(t, NotFound, st.Code())
	assert.Equal(t, "m", st.Message())
	assert.Equal(t, "m", st.Details())
	assert.False(t, st.IsOK())
}

func TestMessageFallsBackToStockDescription(t *testing.T) {
	st := New(Unavailable, "")
	assert.Equal(t, "", st.Details())
	assert.Contains(t, st.Message(), "unavailable")
}

func TestOK(t *testing.T) {
	st := OK()
	assert.True(t, st.IsOK())
	assert.Equal(t, Ok, st.Code())
}

func TestStatusError(t *testing.T) {
	st := Newf(Internal, "broken invariant %d", 7)
	assert.Contains(t, st.Error(), "Internal")
	assert.Contains(t, st.Error(), "broken invariant 7")
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError(nil).IsOK())

	st := FromError(grpcstatus.Error(codes.NotFound, "m"))
	assert.Equal(t, NotFound, st.Code())
	assert.Equal(t, "m", st.Message())

	st = FromError(assert.AnError)
	assert.Equal(t, Unknown, st.Code())
	require.NotEmpty(t, st.Message())
}

func TestToTransport(t *testing.T) {
	st := ToTransport(New(DeadlineExceeded, "too slow"))
	assert.Equal(t, codes.DeadlineExceeded, st.Code())
	assert.Equal(t, "too slow", st.Message())

	assert.Equal(t, codes.OK, ToTransport(OK()).Code())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "FailedPrecondition", FailedPrecondition.String())
	assert.Equal(t, "Code(99)", Code(99).String())
}
