package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFramePayload bounds a single frame's payload so a corrupt or hostile
// length prefix can't force an unbounded allocation. 16 MiB blocks are the
// largest payload this protocol ever sends; leave headroom for framing
// overhead.
const MaxFramePayload = 17 * 1024 * 1024

// WriteFrame writes payload as one [4-byte LE length][payload] frame,
// the wire format every Packet is carried in: one frame per packet, no
// multiplexing.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return errors.Errorf("wire: frame payload %d exceeds maximum %d", len(payload), MaxFramePayload)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-delimited frame's payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFramePayload {
		return nil, errors.Errorf("wire: frame payload %d exceeds maximum %d", n, MaxFramePayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
