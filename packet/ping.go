package packet

import (
	"bytes"
	"io"
)

// Ping carries no payload; it exists so a node can probe a peer's
// liveness with a frame that holds nothing but its command byte.
type Ping struct{}

func (p *Ping) Command() Command { return CommandPing }

func (p *Ping) Encode(w *bytes.Buffer) error { return nil }

func decodePing(r io.Reader) (*Ping, error) {
	return &Ping{}, nil
}
