package packet

import (
	"bytes"
	"io"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/wire"
)

// BlockPacket carries one full block, gossiped after it's mined or
// accepted, or sent in answer to a BlockRequest.
type BlockPacket struct {
	Block *block.Block
}

func (p *BlockPacket) Command() Command { return CommandBlock }

func (p *BlockPacket) Encode(w *bytes.Buffer) error {
	data, err := p.Block.Serialize()
	if err != nil {
		return err
	}
	return wire.WriteVarBytes(w, data)
}

func decodeBlockPacket(r io.Reader) (*BlockPacket, error) {
	data, err := wire.ReadVarBytes(r)
	if err != nil {
		return nil, err
	}
	b, err := block.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return &BlockPacket{Block: b}, nil
}
