package peer

import (
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/packet"
	"github.com/daglabs/ledgerd/util/panics"
	"github.com/daglabs/ledgerd/wire"
)

func portString(port uint16) string {
	return strconv.FormatUint(uint64(port), 10)
}

// Connection is one TCP link to a peer: a receive goroutine decoding
// length-delimited packet.Packet frames into the shared inbound channel,
// and a send path guarded by its own mutex so Broadcast/SendTo can write
// from the manager's lock without racing the receive goroutine's reads.
type Connection struct {
	conn          net.Conn
	publicAddress string

	sendMu sync.Mutex
	log    *logs.Logger
	quit   chan struct{} // closed by Close to release a blocked enqueue
	done   chan struct{} // closed by the receive loop on exit
}

// newConnection sends the local OnConnected handshake and starts the
// receive loop.
func newConnection(port uint16, address string, conn net.Conn, inbound chan inboundPacket, log *logs.Logger) (*Connection, error) {
	c := &Connection{
		conn: conn,
		log:  log,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	if err := c.Send(&packet.OnConnected{Port: port}); err != nil {
		conn.Close()
		return nil, err
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn(func() { c.receiveLoop(address, inbound) })
	return c, nil
}

func (c *Connection) receiveLoop(address string, inbound chan inboundPacket) {
	defer close(c.done)
	for {
		payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			if err != io.EOF {
				c.log.Debugf("recv from %s: %s", address, err)
			}
			return
		}

		p, err := packet.Decode(payload)
		if err != nil {
			c.log.Warnf("decode packet from %s: %s", address, err)
			continue
		}

		select {
		case inbound <- inboundPacket{from: address, pkt: p}:
		case <-c.quit:
			return
		}
	}
}

// Send writes p as one framed packet. Safe to call concurrently with
// Close and with other Sends.
func (c *Connection) Send(p packet.Packet) error {
	data, err := packet.Encode(p)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return wire.WriteFrame(c.conn, data)
}

// Close shuts down the connection and waits for its receive goroutine to
// exit.
func (c *Connection) Close() {
	close(c.quit)
	c.conn.Close()
	<-c.done
}
