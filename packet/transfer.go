package packet

import (
	"bytes"

	"github.com/daglabs/ledgerd/transaction"
)

// TransferPacket gossips one pending balance transfer before it lands
// in a block, so every miner in the cluster can include it in its next
// candidate rather than only the node it was submitted to.
type TransferPacket struct {
	Transfer *transaction.Transfer
}

func (p *TransferPacket) Command() Command { return CommandTransfer }

func (p *TransferPacket) Encode(w *bytes.Buffer) error {
	return p.Transfer.Encode(w)
}

func decodeTransferPacket(r *bytes.Reader) (*TransferPacket, error) {
	t, err := transaction.DecodeTransfer(r)
	if err != nil {
		return nil, err
	}
	return &TransferPacket{Transfer: t}, nil
}
