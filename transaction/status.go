package transaction

import "github.com/daglabs/ledgerd/crypto"

// Status is a running per-address projection: current balance and the
// highest transaction id observed from this wallet so far (the replay
// watermark). ZeroStatus, not the zero value, represents a wallet that
// has never sent a transaction -- see HighestID's doc comment for why its
// watermark isn't simply 0.
type Status struct {
	Balance float64

	// HighestID is the highest transaction id folded in from this
	// address so far, or -1 if none has been folded yet. A plain
	// uint32 watermark starting at 0 would reject a genuine first
	// transaction with id 0, since id 0 is a valid (and the natural
	// starting) per-sender id; -1 keeps "no transaction seen" distinct
	// from "transaction 0 seen".
	HighestID int64
}

// ZeroStatus is the fold starting point for any address: no balance, no
// transactions seen.
func ZeroStatus() Status {
	return Status{Balance: 0, HighestID: -1}
}

// Tx is the fold contract every transaction shape implements: given an
// address and the running status for it, apply this transaction's effect
// and return the new status with ok=true, or ok=false if the fold must
// abort (e.g. a replayed id).
type Tx interface {
	// Update folds this transaction into status for the given address.
	// isBlockWinner is true when address is the reward recipient of the
	// block this transaction is being folded as part of.
	Update(address crypto.Hash, status Status, isBlockWinner bool) (Status, bool)
}

// BlockReward is the fixed per-block reward credited to the reward
// recipient during a block fold.
//
// FIXME: emission schedule not defined.
const BlockReward = 10.0
