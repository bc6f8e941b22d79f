package packet

import (
	"bytes"

	"github.com/daglabs/ledgerd/datastore"
	"github.com/daglabs/ledgerd/transaction"
	"github.com/daglabs/ledgerd/wire"
)

// PagePacket gossips one page record together with the content it
// commits to, so the receiving node can hand the bytes to its content
// store while the page itself waits for a block.
type PagePacket struct {
	Page *transaction.Page
	Data datastore.DataUnit
}

func (p *PagePacket) Command() Command { return CommandPage }

func (p *PagePacket) Encode(w *bytes.Buffer) error {
	if err := p.Page.Encode(w); err != nil {
		return err
	}
	if err := wire.WriteCollectionLen(w, len(p.Data.Chunks)); err != nil {
		return err
	}
	for _, chunk := range p.Data.Chunks {
		if err := wire.WriteVarBytes(w, chunk); err != nil {
			return err
		}
	}
	return nil
}

func decodePagePacket(r *bytes.Reader) (*PagePacket, error) {
	pg, err := transaction.DecodePage(r)
	if err != nil {
		return nil, err
	}

	chunkCount, err := wire.ReadCollectionLen(r)
	if err != nil {
		return nil, err
	}
	var unit datastore.DataUnit
	if chunkCount > 0 {
		unit.Chunks = make([][]byte, chunkCount)
		for i := range unit.Chunks {
			chunk, err := wire.ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			unit.Chunks[i] = chunk
		}
	}

	return &PagePacket{Page: pg, Data: unit}, nil
}
