// Package ledgererr defines the error kinds shared by the crypto,
// transaction, block, chain, miner and peer packages. Every kind named in
// the error handling design is represented here so callers can switch on
// it after unwrapping, while still getting a stack trace from
// github.com/pkg/errors for logging.
package ledgererr

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Kind enumerates the well-known error categories raised by the core.
type Kind int

const (
	// KindUnknown is the zero value; never intentionally returned.
	KindUnknown Kind = iota
	KindBadSignature
	KindBadKey
	KindNegativeAmount
	KindReplayedID
	KindUnbalancedInputs
	KindWrongHashCount
	KindBadPoW
	KindBadPrevHash
	KindBadTarget
	KindBlockTooLarge
	KindDuplicateBlock
	KindNoValidBranch
	KindSerializationError
	KindIOError
	KindPeerUnreachable
	KindPeerProtocolError
)

var kindStrings = map[Kind]string{
	KindBadSignature:       "bad signature",
	KindBadKey:              "bad key",
	KindNegativeAmount:     "negative amount",
	KindReplayedID:         "replayed transaction id",
	KindUnbalancedInputs:   "unbalanced inputs",
	KindWrongHashCount:     "wrong data hash count",
	KindBadPoW:             "proof of work does not satisfy target",
	KindBadPrevHash:        "prev hash does not match chain tip",
	KindBadTarget:          "target does not match recomputed difficulty",
	KindBlockTooLarge:      "serialized block exceeds size limit",
	KindDuplicateBlock:     "duplicate block",
	KindNoValidBranch:      "no branch accepts this block",
	KindSerializationError: "serialization error",
	KindIOError:            "io error",
	KindPeerUnreachable:    "peer unreachable",
	KindPeerProtocolError:  "peer protocol error",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown error"
}

// kindError pairs a Kind with the underlying wrapped error so errors.Cause
// and %+v stack traces keep working while As/Is can still recover the Kind.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Cause() error  { return e.cause }

// Format prints the kind followed by the cause's own %+v output (message
// and stack trace) for %+v, and Error() for every other verb.
func (e *kindError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.kind, e.cause)
		return
	}
	io.WriteString(s, e.Error())
}

// New creates a new error of the given kind with a stack trace attached.
func New(kind Kind, message string) error {
	return &kindError{kind: kind, cause: errors.New(message)}
}

// Newf is New with fmt-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving its stack trace if
// it already carries one (github.com/pkg/errors does this transparently).
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrap(err, message)}
}

// Is reports whether err (or anything it wraps) was created with the given
// Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if k, ok := err.(*kindError); ok && k.kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf extracts the Kind carried by err, or KindUnknown if none.
func KindOf(err error) Kind {
	var ke *kindError
	for err != nil {
		if k, ok := err.(*kindError); ok {
			ke = k
			break
		}
		err = errors.Unwrap(err)
	}
	if ke == nil {
		return KindUnknown
	}
	return ke.kind
}
