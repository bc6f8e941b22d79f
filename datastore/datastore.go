// Package datastore declares the collaborator interfaces the core
// consumes but does not implement: the wallet provider (key custody and
// signing) and the bulk page-content store. Those live in external
// layers -- the core only needs their shape, plus the DataUnit value
// that travels next to a Page on the wire.
package datastore

import (
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/transaction"
)

// DataUnit is the content a page commits to: one blob per content-chunk
// hash, in the same order the page lists its hashes. The ledger never
// interprets the bytes; it only moves them between peers and the store.
type DataUnit struct {
	Chunks [][]byte
}

// Len returns the total content length in bytes.
func (u DataUnit) Len() uint64 {
	var n uint64
	for _, c := range u.Chunks {
		n += uint64(len(c))
	}
	return n
}

// Hashes returns the ordered content-chunk hashes of this unit.
func (u DataUnit) Hashes() []crypto.Hash {
	out := make([]crypto.Hash, len(u.Chunks))
	for i, c := range u.Chunks {
		out[i] = crypto.Sum(c)
	}
	return out
}

// PageStore is the bulk data-store collaborator: it turns page metadata
// into retrievable content and back.
type PageStore interface {
	// ForPageUpdates returns a DataUnit covering the content the given
	// pages reference, suitable for attaching to outbound Page packets.
	ForPageUpdates(pages []*transaction.Page) (DataUnit, error)
	// Store persists a DataUnit received from a peer.
	Store(unit DataUnit) error
}

// WalletProvider is the wallet-file collaborator: key custody, signing,
// and the RSA public exponent the protocol carries alongside every
// transaction.
type WalletProvider interface {
	GetAddress() (crypto.Hash, error)
	GetPublicKey() (crypto.PublicKey, error)
	GetE() (crypto.Exponent, error)
	Sign(hash crypto.Hash) (crypto.Signature, error)
}
