// Package packet defines the gossip protocol's wire messages:
// connection handshake (OnConnected), peer discovery (KnownNode), block
// and transaction propagation (Block, BlockRequest, Transfer, Page) and
// liveness (Ping). Each Packet is framed by package wire's
// length-delimited framing; this package only handles the payload that
// sits inside a frame: one byte naming the command, followed by the
// command's own encoding.
package packet

import (
	"bytes"

	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/wire"
)

// Command identifies which Packet variant a frame's payload holds.
type Command uint8

const (
	CommandOnConnected Command = iota
	CommandKnownNode
	CommandBlock
	CommandBlockRequest
	CommandTransfer
	CommandPage
	CommandPing
)

var commandNames = map[Command]string{
	CommandOnConnected:  "onconnected",
	CommandKnownNode:    "knownnode",
	CommandBlock:        "block",
	CommandBlockRequest: "blockrequest",
	CommandTransfer:     "transfer",
	CommandPage:         "page",
	CommandPing:         "ping",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

// Packet is one gossip protocol message.
type Packet interface {
	Command() Command
	Encode(w *bytes.Buffer) error
}

// Encode serializes p as a command byte followed by its payload, ready
// to be handed to wire.WriteFrame.
func Encode(p Packet) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := wire.WriteElement(buf, uint8(p.Command())); err != nil {
		return nil, err
	}
	if err := p.Encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a command byte from payload and dispatches to the
// matching Packet's decoder.
func Decode(payload []byte) (Packet, error) {
	r := bytes.NewReader(payload)
	var cmd uint8
	if err := wire.ReadElement(r, &cmd); err != nil {
		return nil, err
	}

	switch Command(cmd) {
	case CommandOnConnected:
		return decodeOnConnected(r)
	case CommandKnownNode:
		return decodeKnownNode(r)
	case CommandBlock:
		return decodeBlockPacket(r)
	case CommandBlockRequest:
		return decodeBlockRequest(r)
	case CommandTransfer:
		return decodeTransferPacket(r)
	case CommandPage:
		return decodePagePacket(r)
	case CommandPing:
		return decodePing(r)
	default:
		return nil, ledgererr.Newf(ledgererr.KindPeerProtocolError, "unknown packet command %d", cmd)
	}
}
