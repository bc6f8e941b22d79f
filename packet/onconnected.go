package packet

import (
	"bytes"
	"io"

	"github.com/daglabs/ledgerd/wire"
)

// OnConnected announces the sender's own listening port immediately
// after a TCP connection is established, so the peer on the other end
// can register a dialable address for it rather than the ephemeral
// outbound socket address it sees.
type OnConnected struct {
	Port uint16
}

func (p *OnConnected) Command() Command { return CommandOnConnected }

func (p *OnConnected) Encode(w *bytes.Buffer) error {
	return wire.WriteElement(w, p.Port)
}

func decodeOnConnected(r io.Reader) (*OnConnected, error) {
	var p OnConnected
	if err := wire.ReadElement(r, &p.Port); err != nil {
		return nil, err
	}
	return &p, nil
}
