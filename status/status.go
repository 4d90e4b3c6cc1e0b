// Package status defines the runtime's RPC status taxonomy.
//
// Application code links against the runtime plus its own types, not against
// the transport. Wrapped senders therefore deliver a status.Status on their
// error channel instead of a transport status, and this package carries the
// total, round-trip conversion between the two.
package status

import (
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Code identifies the kind of an RPC failure. The first seventeen values
// mirror the transport's status codes one to one. LogicError and Unspecified
// are runtime-only: LogicError marks a failure in user-supplied logic, and
// Unspecified is the image of the transport's sentinel value.
type Code int32

const (
	Ok Code = iota
	Cancelled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
	LogicError
	Unspecified
)

// transportSentinel stands in for the transport's DO_NOT_USE code; grpc-go
// has no named equivalent.
const transportSentinel = codes.Code(^uint32(0))

var codeNames = map[Code]string{
	Ok:                 "Ok",
	Cancelled:          "Cancelled",
	Unknown:            "Unknown",
	InvalidArgument:    "InvalidArgument",
	DeadlineExceeded:   "DeadlineExceeded",
	NotFound:           "NotFound",
	AlreadyExists:      "AlreadyExists",
	PermissionDenied:   "PermissionDenied",
	ResourceExhausted:  "ResourceExhausted",
	FailedPrecondition: "FailedPrecondition",
	Aborted:            "Aborted",
	OutOfRange:         "OutOfRange",
	Unimplemented:      "Unimplemented",
	Internal:           "Internal",
	Unavailable:        "Unavailable",
	DataLoss:           "DataLoss",
	Unauthenticated:    "Unauthenticated",
	LogicError:         "LogicError",
	Unspecified:        "Unspecified",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int32(c))
}

// Message returns the stock human-readable description for the code.
func (c Code) Message() string {
	switch c {
	case Ok:
		return "success"
	case Cancelled:
		return "the operation was cancelled, typically by the caller"
	case Unknown:
		return "unknown error"
	case InvalidArgument:
		return "the client specified an invalid argument"
	case DeadlineExceeded:
		return "the deadline expired before the operation could complete"
	case NotFound:
		return "some requested entity was not found"
	case AlreadyExists:
		return "the entity that a client attempted to create already exists"
	case PermissionDenied:
		return "permission denied"
	case ResourceExhausted:
		return "some resource has been exhausted"
	case FailedPrecondition:
		return "the system is not in a state required for the operation's execution"
	case Aborted:
		return "the operation was aborted"
	case OutOfRange:
		return "the operation was attempted past a valid range"
	case Unimplemented:
		return "the operation is not implemented or not supported"
	case Internal:
		return "internal error; an invariant expected by the underlying system was broken"
	case Unavailable:
		return "the service is currently unavailable"
	case DataLoss:
		return "unrecoverable data loss or corruption"
	case Unauthenticated:
		return "unauthenticated access"
	case LogicError:
		return "a user-supplied function failed"
	case Unspecified:
		return "some unspecified error"
	}
	return "unknown error"
}

// Status is the value delivered on the sender error channel: a code plus an
// optional message. Cheap to copy; never carries a stack.
type Status struct {
	code    Code
	message string
}

// New builds a Status from a code and message.
func New(code Code, message string) Status {
	return Status{code: code, message: message}
}

// Newf builds a Status from a code and a format string.
func Newf(code Code, format string, args ...any) Status {
	return Status{code: code, message: fmt.Sprintf(format, args...)}
}

// OK is the success status.
func OK() Status { return Status{code: Ok} }

// Code returns the status code.
func (s Status) Code() Code { return s.code }

// Message returns the attached message, falling back to the code's stock
// description when none was set.
func (s Status) Message() string {
	if s.message != "" {
		return s.message
	}
	return s.code.Message()
}

// Details returns the attached message verbatim, possibly empty.
func (s Status) Details() string { return s.message }

// IsOK reports whether the status carries no error.
func (s Status) IsOK() bool { return s.code == Ok }

// Error makes Status usable where a Go error is wanted, e.g. in test
// assertions. The sender error channel carries the value form.
func (s Status) Error() string {
	return fmt.Sprintf("%s: %s", s.code, s.Message())
}

// FromTransportCode maps a transport status code onto the runtime taxonomy.
// Total: every known transport code maps to its mirror value, and the
// sentinel (or any unknown code) maps to Unspecified.
func FromTransportCode(c codes.Code) Code {
	if c <= codes.Unauthenticated {
		return Code(c)
	}
	return Unspecified
}

// ToTransportCode maps a runtime code onto the transport. Total: mirror
// codes map back one to one, LogicError maps to Internal, and Unspecified
// maps to the sentinel.
func ToTransportCode(c Code) codes.Code {
	switch {
	case c >= Ok && c <= Unauthenticated:
		return codes.Code(c)
	case c == LogicError:
		return codes.Internal
	default:
		return transportSentinel
	}
}

// FromTransport converts a transport status into a runtime Status.
func FromTransport(st *grpcstatus.Status) Status {
	if st == nil {
		return OK()
	}
	return Status{code: FromTransportCode(st.Code()), message: st.Message()}
}

// FromError converts an error returned by a transport call into a runtime
// Status. A nil error is Ok; a non-status error becomes Unknown.
func FromError(err error) Status {
	if err == nil {
		return OK()
	}
	if st, ok := grpcstatus.FromError(err); ok {
		return FromTransport(st)
	}
	return Status{code: Unknown, message: err.Error()}
}

// ToTransport converts a runtime Status into a transport status.
func ToTransport(s Status) *grpcstatus.Status {
	if s.IsOK() {
		return grpcstatus.New(codes.OK, "")
	}
	return grpcstatus.New(ToTransportCode(s.code), s.Message())
}
