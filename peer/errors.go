package peer

import "github.com/daglabs/ledgerd/ledgererr"

func errListenerClosed(port uint16) error {
	return ledgererr.Newf(ledgererr.KindPeerUnreachable, "listener on port %d closed", port)
}
