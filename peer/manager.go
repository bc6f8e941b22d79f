// Package peer implements the gossip transport: a TCP listener accepting
// inbound connections, outbound dialing to known peer addresses, and a
// ConnectionManager that tracks which peers are open, re-gossips newly
// learned addresses, and routes every decoded packet.Packet to a single
// handler goroutine.
package peer

import (
	"net"
	"sync"

	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/packet"
)

// Handler receives every packet a connected peer sends. KnownNode is
// consumed by the ConnectionManager itself, and OnConnected is only
// forwarded after the manager has registered the peer's public address.
type Handler interface {
	OnPacket(from string, p packet.Packet, cm *ConnectionManager)
}

// inboundPacket is one decoded packet tagged with the address it arrived
// from, passed from a Connection's receive loop to the single message
// handler goroutine.
type inboundPacket struct {
	from string
	pkt  packet.Packet
}

// ConnectionManager owns every live connection for one node, plus the
// set of known peer addresses gossiped so far. All of its methods
// besides the receive loop's internal send are called with mu held.
type ConnectionManager struct {
	mu sync.Mutex

	port        uint16
	log         *logs.Logger
	inbound     chan inboundPacket
	knownNodes  map[string]struct{}
	openNodes   map[string]struct{}
	connections map[string]*Connection
	book        *addrBook
}

// NewConnectionManager builds a manager that will deliver decoded
// packets on inbound.
func NewConnectionManager(port uint16, book *addrBook, log *logs.Logger, inbound chan inboundPacket) *ConnectionManager {
	return &ConnectionManager{
		port:        port,
		log:         log,
		inbound:     inbound,
		knownNodes:  make(map[string]struct{}),
		openNodes:   make(map[string]struct{}),
		connections: make(map[string]*Connection),
		book:        book,
	}
}

// addClient wraps an already-established net.Conn in a Connection,
// starts its receive loop, and sends the local OnConnected handshake.
func (cm *ConnectionManager) addClient(address string, conn net.Conn) {
	cm.log.Infof("connected to %s", address)

	c, err := newConnection(cm.port, address, conn, cm.inbound, cm.log)
	if err != nil {
		cm.log.Warnf("handshake with %s failed: %s", address, err)
		return
	}
	cm.connections[address] = c
}

// confirmConnection records the peer's advertised dial-back address once
// its OnConnected packet arrives.
func (cm *ConnectionManager) confirmConnection(address, publicAddress string) {
	c, ok := cm.connections[address]
	if !ok {
		return
	}
	c.publicAddress = publicAddress
}

// RegisterNode adds address to the known-node set and persists it. When
// haveFrom is true it also gossips the address to every connection
// except from, the one it arrived on; otherwise it is not gossiped.
func (cm *ConnectionManager) RegisterNode(address string, from string, haveFrom bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.registerNodeLocked(address, from, haveFrom)
}

func (cm *ConnectionManager) registerNodeLocked(address string, from string, haveFrom bool) {
	if _, known := cm.knownNodes[address]; known {
		return
	}
	cm.knownNodes[address] = struct{}{}
	if cm.book != nil {
		_ = cm.book.Add(address)
	}
	cm.log.Debugf("registered new node %s", address)

	if haveFrom {
		cm.sendToLocked(&packet.KnownNode{Address: address}, func(addr string) bool {
			return addr != from
		})
	}
}

func (cm *ConnectionManager) connectLocked(address string) {
	if address == loopbackSelf(cm.port) {
		return
	}
	if _, open := cm.openNodes[address]; open {
		return
	}

	conn, err := net.Dial("tcp", address)
	if err != nil {
		cm.log.Debugf("unable to connect to %s: %s", address, err)
		return
	}
	cm.addClient(address, conn)
}

func loopbackSelf(port uint16) string {
	return net.JoinHostPort("127.0.0.1", portString(port))
}

// ConnectToKnownNodes dials every known address not already open. Called
// on the message handler's poll timeout, so a missing peer is retried
// whenever the handler has been idle for a tick.
func (cm *ConnectionManager) ConnectToKnownNodes() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for address := range cm.knownNodes {
		if _, open := cm.openNodes[address]; !open {
			cm.connectLocked(address)
		}
	}
}

// Broadcast sends p to every peer with a confirmed public address.
func (cm *ConnectionManager) Broadcast(p packet.Packet) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sendToLocked(p, func(string) bool { return true })
}

// SendTo sends p to every confirmed peer for which predicate returns
// true.
func (cm *ConnectionManager) SendTo(p packet.Packet, predicate func(address string) bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sendToLocked(p, predicate)
}

func (cm *ConnectionManager) sendToLocked(p packet.Packet, predicate func(address string) bool) {
	var disconnected []string
	for address, c := range cm.connections {
		if c.publicAddress == "" {
			continue
		}
		if !predicate(address) {
			continue
		}
		if err := c.Send(p); err != nil {
			cm.log.Debugf("send to %s failed: %s", address, err)
			disconnected = append(disconnected, address)
		}
	}
	for _, address := range disconnected {
		cm.disconnectFromLocked(address)
	}
}

// DisconnectFrom closes and forgets the connection at address.
func (cm *ConnectionManager) DisconnectFrom(address string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.disconnectFromLocked(address)
}

func (cm *ConnectionManager) disconnectFromLocked(address string) {
	c, ok := cm.connections[address]
	if !ok {
		return
	}
	delete(cm.connections, address)
	if c.publicAddress != "" {
		delete(cm.openNodes, c.publicAddress)
	}
	c.Close()
}

// handleInbound consumes KnownNode within the network layer, registers
// the peer's public address on OnConnected before handing that packet to
// handler, and hands everything else to handler directly.
func (cm *ConnectionManager) handleInbound(msg inboundPacket, handler Handler) {
	cm.mu.Lock()

	switch p := msg.pkt.(type) {
	case *packet.KnownNode:
		cm.registerNodeLocked(p.Address, msg.from, true)
		cm.mu.Unlock()
		return

	case *packet.OnConnected:
		publicAddress := net.JoinHostPort(hostOf(msg.from), portString(p.Port))
		if _, dup := cm.openNodes[publicAddress]; dup {
			cm.log.Debugf("removing duplicate connection %s", publicAddress)
			cm.disconnectFromLocked(msg.from)
			cm.mu.Unlock()
			return
		}
		cm.openNodes[publicAddress] = struct{}{}
		cm.confirmConnection(msg.from, publicAddress)
		cm.registerNodeLocked(publicAddress, msg.from, true)
		cm.mu.Unlock()
		handler.OnPacket(msg.from, p, cm)
		return
	}

	cm.mu.Unlock()
	handler.OnPacket(msg.from, msg.pkt, cm)
}

func hostOf(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}
