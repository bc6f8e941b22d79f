// Package wire implements the canonical binary encoding used both on disk
// and on the network: integers little-endian, fixed-size arrays inline,
// variable-size collections prefixed by a 64-bit length. It also defines
// the length-delimited framing used to carry packets over TCP.
package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
)

var byteOrder = binary.LittleEndian

// MaxCollectionLength guards against memory exhaustion from a corrupt or
// hostile length prefix.
const MaxCollectionLength = 1 << 24

// ReadElement reads the next value from r into element, dispatching on
// its concrete type.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = buf[0]
		return nil

	case *bool:
		var v uint8
		if err := ReadElement(r, &v); err != nil {
			return err
		}
		*e = v != 0
		return nil

	case *uint16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = byteOrder.Uint16(buf[:])
		return nil

	case *uint32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = byteOrder.Uint32(buf[:])
		return nil

	case *int64:
		var v uint64
		if err := ReadElement(r, &v); err != nil {
			return err
		}
		*e = int64(v)
		return nil

	case *uint64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = byteOrder.Uint64(buf[:])
		return nil

	case *crypto.Hash:
		_, err := io.ReadFull(r, e[:])
		return err

	case *crypto.PublicKey:
		_, err := io.ReadFull(r, e[:])
		return err

	case *crypto.Exponent:
		_, err := io.ReadFull(r, e[:])
		return err

	case *crypto.Signature:
		_, err := io.ReadFull(r, e[:])
		return err
	}

	return errors.Errorf("wire: ReadElement: unsupported type %T", element)
}

// WriteElement writes element to w using the same type dispatch as
// ReadElement.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		_, err := w.Write([]byte{e})
		return err

	case bool:
		if e {
			return WriteElement(w, uint8(1))
		}
		return WriteElement(w, uint8(0))

	case uint16:
		var buf [2]byte
		byteOrder.PutUint16(buf[:], e)
		_, err := w.Write(buf[:])
		return err

	case uint32:
		var buf [4]byte
		byteOrder.PutUint32(buf[:], e)
		_, err := w.Write(buf[:])
		return err

	case int64:
		return WriteElement(w, uint64(e))

	case uint64:
		var buf [8]byte
		byteOrder.PutUint64(buf[:], e)
		_, err := w.Write(buf[:])
		return err

	case crypto.Hash:
		_, err := w.Write(e[:])
		return err

	case crypto.PublicKey:
		_, err := w.Write(e[:])
		return err

	case crypto.Exponent:
		_, err := w.Write(e[:])
		return err

	case crypto.Signature:
		_, err := w.Write(e[:])
		return err
	}

	return errors.Errorf("wire: WriteElement: unsupported type %T", element)
}

// WriteVarBytes writes a variable-length byte slice as an 8-byte LE length
// prefix followed by the bytes themselves.
func WriteVarBytes(w io.Writer, b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return ledgererr.New(ledgererr.KindSerializationError, "byte slice too large to encode")
	}
	if err := WriteElement(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes is the inverse of WriteVarBytes.
func ReadVarBytes(r io.Reader) ([]byte, error) {
	var n uint64
	if err := ReadElement(r, &n); err != nil {
		return nil, err
	}
	if n > MaxCollectionLength {
		return nil, ledgererr.New(ledgererr.KindSerializationError, "collection length exceeds maximum")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarString writes a string the same way WriteVarBytes writes a byte
// slice.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}

// ReadVarString is the inverse of WriteVarString.
func ReadVarString(r io.Reader) (string, error) {
	b, err := ReadVarBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCollectionLen reads the 8-byte LE length prefix that precedes every
// variable-size collection (slices of hashes, transactions, etc).
func ReadCollectionLen(r io.Reader) (uint64, error) {
	var n uint64
	if err := ReadElement(r, &n); err != nil {
		return 0, err
	}
	if n > MaxCollectionLength {
		return 0, ledgererr.New(ledgererr.KindSerializationError, "collection length exceeds maximum")
	}
	return n, nil
}

// WriteCollectionLen writes the 8-byte LE length prefix for a collection
// of n elements.
func WriteCollectionLen(w io.Writer, n int) error {
	return WriteElement(w, uint64(n))
}
