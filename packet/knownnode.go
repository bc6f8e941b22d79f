package packet

import (
	"bytes"
	"io"

	"github.com/daglabs/ledgerd/wire"
)

// KnownNode gossips one peer address the sender has learned about:
// received nodes are registered and re-gossiped to every other
// connection except the one they arrived from.
type KnownNode struct {
	Address string
}

func (p *KnownNode) Command() Command { return CommandKnownNode }

func (p *KnownNode) Encode(w *bytes.Buffer) error {
	return wire.WriteVarString(w, p.Address)
}

func decodeKnownNode(r io.Reader) (*KnownNode, error) {
	address, err := wire.ReadVarString(r)
	if err != nil {
		return nil, err
	}
	return &KnownNode{Address: address}, nil
}
