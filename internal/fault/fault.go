package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can pick a response without
// inspecting message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStorage
	KindSignatureInvalid
	KindGatewayUnavailable
	KindGatewayRejected
	KindPaymentFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindSignatureInvalid:
		return "signature_invalid"
	case KindGatewayUnavailable:
		return "gateway_unavailable"
	case KindGatewayRejected:
		return "gateway_rejected"
	case KindPaymentFailed:
		return "payment_failed"
	default:
		return "unknown"
	}
}

// Fault is an error carrying its Kind. Wrapped causes stay reachable
// through errors.Is / errors.As.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return f.Msg + ": " + f.Err.Error()
	}
	return f.Msg
}

func (f *Fault) Unwrap() error { return f.Err }

func New(kind Kind, msg string) *Fault {
	return &Fault{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Fault {
	return &Fault{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may safely repeat the operation.
func Retryable(err error) bool {
	return KindOf(err) == KindGatewayUnavailable
}
