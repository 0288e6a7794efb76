package common

import "fmt"

// ProtocolErrType enumerates the chain-sync failure modes C6 can report,
// the same way StoreErrType enumerates babble's store failures.
type ProtocolErrType uint32

const (
	// MalformedSnapshot means a peer's CHAIN payload did not decode.
	MalformedSnapshot ProtocolErrType = iota
	// NoPlurality means a sync round closed with no snapshots collected.
	NoPlurality
	// EncodingFailed means a local snapshot failed to marshal for sending.
	EncodingFailed
)

// ProtocolErr is a small, data-carrying error type for C6, grounded on
// babble's StoreErr.
type ProtocolErr struct {
	errType ProtocolErrType
	peer    string
	cause   error
}

// NewProtocolErr builds a ProtocolErr. peer may be empty when the failure
// is not attributable to a single reporting peer.
func NewProtocolErr(errType ProtocolErrType, peer string, cause error) ProtocolErr {
	return ProtocolErr{errType: errType, peer: peer, cause: cause}
}

func (e ProtocolErr) Error() string {
	m := ""
	switch e.errType {
	case MalformedSnapshot:
		m = "malformed chain snapshot"
	case NoPlurality:
		m = "no plurality among collected snapshots"
	case EncodingFailed:
		m = "encoding chain snapshot"
	}
	if e.peer != "" {
		m = fmt.Sprintf("%s (peer %s)", m, e.peer)
	}
	if e.cause != nil {
		m = fmt.Sprintf("%s: %v", m, e.cause)
	}
	return m
}

// Unwrap lets errors.Is/As reach the underlying decode/encode error.
func (e ProtocolErr) Unwrap() error {
	return e.cause
}

// IsProtocol checks that an error is a ProtocolErr of the given type.
func IsProtocol(err error, t ProtocolErrType) bool {
	protoErr, ok := err.(ProtocolErr)
	return ok && protoErr.errType == t
}
