package packet

import (
	"bytes"
	"io"

	"github.com/daglabs/ledgerd/wire"
)

// BlockRequest asks a peer for the block at ID. The node answers one with
// that block from its longest branch, if present; it does not send
// BlockRequests itself, so a block whose parent is unknown locally is
// not followed up by requests for its ancestors.
type BlockRequest struct {
	ID uint64
}

func (p *BlockRequest) Command() Command { return CommandBlockRequest }

func (p *BlockRequest) Encode(w *bytes.Buffer) error {
	return wire.WriteElement(w, p.ID)
}

func decodeBlockRequest(r io.Reader) (*BlockRequest, error) {
	var p BlockRequest
	if err := wire.ReadElement(r, &p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}
