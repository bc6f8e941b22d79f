package peer

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/packet"
)

// recordingHandler counts the packets the network layer hands through,
// standing in for the node's real packet handler.
type recordingHandler struct {
	mu        sync.Mutex
	pings     int
	connected int
}

func (h *recordingHandler) OnPacket(from string, p packet.Packet, cm *ConnectionManager) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch p.(type) {
	case *packet.Ping:
		h.pings++
	case *packet.OnConnected:
		h.connected++
	}
}

func (h *recordingHandler) pingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pings
}

func startTestServer(t *testing.T, port uint16) (*Server, *recordingHandler) {
	t.Helper()
	handler := &recordingHandler{}
	s, err := NewServer(port, filepath.Join(t.TempDir(), "peers.db"), handler, logs.Disabled("PEER"))
	if err != nil {
		t.Fatalf("NewServer on port %d: %v", port, err)
	}
	t.Cleanup(func() { s.Close() })
	return s, handler
}

func openCount(cm *ConnectionManager) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.openNodes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Three nodes where only two of them know the first: gossip makes every
// pair mutually connected, and a broadcast ping reaches each other node
// exactly once.
func TestGossipConvergesAndPingReachesEveryoneOnce(t *testing.T) {
	const basePort = 28441

	a, _ := startTestServer(t, basePort)
	b, bHandler := startTestServer(t, basePort+1)
	c, cHandler := startTestServer(t, basePort+2)

	seed := net.JoinHostPort("127.0.0.1", fmt.Sprint(basePort))
	b.ConnectionManager().RegisterNode(seed, "", false)
	c.ConnectionManager().RegisterNode(seed, "", false)

	for _, s := range []*Server{a, b, c} {
		s := s
		waitFor(t, fmt.Sprintf("node on port %d to see 2 peers", s.port), func() bool {
			return openCount(s.cm) == 2
		})
	}

	a.ConnectionManager().Broadcast(&packet.Ping{})

	waitFor(t, "pings to arrive", func() bool {
		return bHandler.pingCount() == 1 && cHandler.pingCount() == 1
	})

	// Give any stray duplicate time to show up before declaring
	// exactly-once delivery.
	time.Sleep(300 * time.Millisecond)
	if got := bHandler.pingCount(); got != 1 {
		t.Fatalf("node B received %d pings, want 1", got)
	}
	if got := cHandler.pingCount(); got != 1 {
		t.Fatalf("node C received %d pings, want 1", got)
	}
}

func TestReregisteringConnectedPeerKeepsOneConnection(t *testing.T) {
	const basePort = 28461

	a, _ := startTestServer(t, basePort)
	b, _ := startTestServer(t, basePort+1)

	seed := net.JoinHostPort("127.0.0.1", fmt.Sprint(basePort))
	b.ConnectionManager().RegisterNode(seed, "", false)

	waitFor(t, "the two nodes to connect", func() bool {
		return openCount(a.cm) == 1 && openCount(b.cm) == 1
	})

	// Registering the already-connected seed again must not yield a
	// second open entry.
	b.ConnectionManager().RegisterNode(seed, "", false)
	time.Sleep(300 * time.Millisecond)
	if got := openCount(b.cm); got != 1 {
		t.Fatalf("open connections after redial = %d, want 1", got)
	}
}
