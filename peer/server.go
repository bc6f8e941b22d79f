package peer

import (
	"net"
	"time"

	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/util/panics"
)

// pollInterval is how often the message handler loop wakes up to dial
// known nodes it isn't yet connected to when no packet has arrived.
const pollInterval = 100 * time.Millisecond

// Server listens for inbound peer connections and drives one handler
// goroutine that both dispatches received packets and periodically
// retries known addresses. Shutdown closes the net.Listener directly,
// which unblocks the pending Accept.
type Server struct {
	port     uint16
	log      *logs.Logger
	cm       *ConnectionManager
	book     *addrBook
	listener net.Listener
	inbound  chan inboundPacket
	done     chan struct{}
}

// NewServer starts listening on port and spawns the accept loop and the
// message handler loop. handler receives every packet not consumed by
// the ConnectionManager itself.
func NewServer(port uint16, addrBookPath string, handler Handler, log *logs.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", portString(port)))
	if err != nil {
		return nil, err
	}

	book, err := openAddrBook(addrBookPath)
	if err != nil {
		listener.Close()
		return nil, err
	}

	inbound := make(chan inboundPacket, 256)
	cm := NewConnectionManager(port, book, log, inbound)

	s := &Server{
		port:     port,
		log:      log,
		cm:       cm,
		book:     book,
		listener: listener,
		inbound:  inbound,
		done:     make(chan struct{}),
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn(s.acceptLoop)
	spawn(func() { s.messageLoop(handler) })

	if known, err := book.All(); err == nil {
		cm.mu.Lock()
		for _, address := range known {
			cm.registerNodeLocked(address, "", false)
		}
		cm.mu.Unlock()
	}

	return s, nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.log.Infof("%s", errListenerClosed(s.port))
			return
		}

		address := conn.RemoteAddr().String()
		s.log.Infof("got connection request from %s", address)

		s.cm.mu.Lock()
		s.cm.addClient(address, conn)
		s.cm.mu.Unlock()
	}
}

func (s *Server) messageLoop(handler Handler) {
	for {
		select {
		case msg := <-s.inbound:
			s.cm.handleInbound(msg, handler)

		case <-time.After(pollInterval):
			s.cm.ConnectToKnownNodes()

		case <-s.done:
			return
		}
	}
}

// ConnectionManager exposes the server's ConnectionManager so callers
// can broadcast packets and register bootstrap addresses.
func (s *Server) ConnectionManager() *ConnectionManager {
	return s.cm
}

// Close stops accepting connections, stops the message loop, and closes
// every open connection.
func (s *Server) Close() error {
	close(s.done)
	s.listener.Close()

	s.cm.mu.Lock()
	for address := range s.cm.connections {
		s.cm.disconnectFromLocked(address)
	}
	s.cm.mu.Unlock()

	return s.book.Close()
}
