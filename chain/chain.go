// Package chain implements the fork-resolving, multi-branch block store:
// one Branch per candidate history, chunked on-disk block storage, a
// shared goleveldb block-hash index, and the longest-chain fork-choice
// rule.
package chain

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/transaction"
)

// FinalityDepth is how many blocks behind the longest branch a shorter
// branch may trail before it is pruned. This is a consensus parameter,
// not a heuristic: it is the depth at which a block is assumed final.
const FinalityDepth = 10

// Chain owns every candidate branch rooted at a single directory. One
// mutex guards the whole store: the miner and the packet handler both
// reach it, and neither ever holds it while doing network I/O.
type Chain struct {
	mu       sync.Mutex
	dir      string
	idx      *blockIndex
	branches []*Branch
}

// New opens (or creates) a chain store at dir, reloading every branch
// subdirectory found there.
func New(dir string) (*Chain, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "create chain dir")
	}

	idx, err := openBlockIndex(filepath.Join(dir, "index"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "list chain dir")
	}

	c := &Chain{dir: dir, idx: idx}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "index" {
			continue
		}
		br, err := loadBranch(filepath.Join(dir, e.Name()), e.Name(), idx)
		if err != nil {
			return nil, err
		}
		c.branches = append(c.branches, br)
	}
	return c, nil
}

// Close releases every open branch and the shared block index.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, br := range c.branches {
		if err := br.Close(); err != nil {
			return err
		}
	}
	return c.idx.Close()
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func (c *Chain) generateBranchName() (string, error) {
	for {
		var raw [5]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", ledgererr.Wrap(ledgererr.KindIOError, err, "generate branch name")
		}
		name := hex.EncodeToString(raw[:])
		if _, err := os.Stat(filepath.Join(c.dir, name)); os.IsNotExist(err) {
			return name, nil
		}
	}
}

// longestBranch returns the branch with the highest tip id, creating an
// empty one if the chain has none yet. Ties go to the branch that was
// created first, hence the strict '>': a '>=' would hand ties to the
// newest branch and flip the canonical chain without a length win.
func (c *Chain) longestBranch() (*Branch, error) {
	var best *Branch
	var bestTop uint64
	haveBest := false

	for _, br := range c.branches {
		id, ok := br.TopID()
		if !ok {
			if best == nil {
				best = br
			}
			continue
		}
		if !haveBest || id > bestTop {
			best = br
			bestTop = id
			haveBest = true
		}
	}

	if best != nil {
		return best, nil
	}

	name, err := c.generateBranchName()
	if err != nil {
		return nil, err
	}
	br, err := newBranch(filepath.Join(c.dir, name), name, c.idx)
	if err != nil {
		return nil, err
	}
	c.branches = append(c.branches, br)
	return br, nil
}

// Top returns the block at the tip of the longest branch, or nil if the
// chain is entirely empty.
func (c *Chain) Top() (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, err := c.longestBranch()
	if err != nil {
		return nil, err
	}
	return br.Tip(), nil
}

// TopID returns the longest branch's tip id, or 0 if the chain is empty
// ("no blocks yet" reads the same as "genesis is next").
func (c *Chain) TopID() (uint64, error) {
	top, err := c.Top()
	if err != nil {
		return 0, err
	}
	if top == nil {
		return 0, nil
	}
	return top.ID, nil
}

// BlockByID reads the block at id from the longest branch, if present
// there. This is the node's BlockRequest read path.
func (c *Chain) BlockByID(id uint64) (*block.Block, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, err := c.longestBranch()
	if err != nil {
		return nil, false, err
	}
	b, ok := br.BlockByID(id)
	return b, ok, nil
}

// WalletStatus folds the longest branch's full history for address.
func (c *Chain) WalletStatus(address crypto.Hash) (transaction.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, err := c.longestBranch()
	if err != nil {
		return transaction.Status{}, err
	}
	return br.WalletStatus(address), nil
}

// TakeSample returns the difficulty sampling window ending at the
// longest branch's tip.
func (c *Chain) TakeSample() (*int64, *int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, err := c.longestBranch()
	if err != nil {
		return nil, nil, err
	}
	start, end := br.TakeSample()
	return start, end, nil
}

func (c *Chain) isKnown(b *block.Block) (bool, error) {
	_, ok, err := c.idx.get(b.Hash())
	return ok, err
}

// Add resolves block into the chain: it extends the branch it's a direct
// child of, is rejected as a duplicate if already present anywhere, or
// spawns a new branch forked from whichever existing branch it validates
// against.
func (c *Chain) Add(b *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	known, err := c.isKnown(b)
	if err != nil {
		return err
	}
	if known {
		return errDuplicateBlock(b.ID)
	}

	if len(c.branches) == 0 {
		if _, err := c.longestBranch(); err != nil {
			return err
		}
	}

	var firstRejection error
	for _, br := range c.branches {
		if b.ID == br.nextExpectedID() {
			err := br.Add(b)
			if err == nil {
				return nil
			}
			if firstRejection == nil {
				firstRejection = err
			}
		}
	}

	var forkFrom *Branch
	for _, br := range c.branches {
		top, ok := br.TopID()
		if !ok || top < b.ID {
			continue
		}
		if existing, ok2 := br.BlockByID(b.ID); ok2 && existing.Hash().Equal(b.Hash()) {
			return errDuplicateBlock(b.ID)
		}
		// A forking block replaces the branch's block at b.ID, so it
		// validates against the parent chain up to b.ID-1, not against
		// the branch's current tip.
		if err := b.Validate(prefixHistory{br: br, length: b.ID}, nowMs()); err == nil {
			forkFrom = br
			break
		}
	}

	if forkFrom == nil {
		// A block that targeted a branch tip but failed validation is
		// more usefully reported by its validation error than by the
		// generic no-valid-branch result.
		if firstRejection != nil {
			return firstRejection
		}
		return errNoValidBranch(b.ID)
	}
	return c.forkFrom(forkFrom, b)
}

// forkFrom creates a new branch sharing old's history up to block.ID-1,
// then appends block to it. Whole chunks strictly before the one
// containing block.ID-1 are copied file-to-file; the remainder is
// replayed block by block.
func (c *Chain) forkFrom(old *Branch, b *block.Block) error {
	name, err := c.generateBranchName()
	if err != nil {
		return err
	}
	dir := filepath.Join(c.dir, name)
	newBr, err := newBranch(dir, name, c.idx)
	if err != nil {
		return err
	}

	if b.ID > 0 {
		forkPointID := b.ID - 1
		lastChunk := chunkIDFor(forkPointID)

		for cid := uint64(0); cid < lastChunk; cid++ {
			if err := copyChunkFile(old.dir, dir, cid); err != nil {
				return err
			}
			blocks, err := loadChunk(old.dir, cid)
			if err != nil {
				return err
			}
			for _, ob := range blocks {
				if err := newBr.applyTrustedInMemory(ob); err != nil {
					return err
				}
			}
		}

		replayStart := lastChunk * ChunkSize
		for id := replayStart; id <= forkPointID; id++ {
			ob, ok := old.BlockByID(id)
			if !ok {
				return ledgererr.Newf(ledgererr.KindIOError, "missing block %d while forking branch", id)
			}
			if err := newBr.appendTrusted(ob); err != nil {
				return err
			}
		}
	}

	if err := newBr.Add(b); err != nil {
		return err
	}

	c.branches = append(c.branches, newBr)
	return nil
}

// PruneBranches removes every branch trailing the longest by more than
// FinalityDepth blocks, from memory and from disk.
func (c *Chain) PruneBranches() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	longest, err := c.longestBranch()
	if err != nil {
		return err
	}
	longestTop, ok := longest.TopID()
	if !ok || longestTop <= FinalityDepth {
		return nil
	}

	var kept []*Branch
	for _, br := range c.branches {
		top, ok := br.TopID()
		if ok && top >= longestTop-FinalityDepth {
			kept = append(kept, br)
			continue
		}
		if err := br.Close(); err != nil {
			return err
		}
		if err := os.RemoveAll(br.dir); err != nil {
			return ledgererr.Wrap(ledgererr.KindIOError, err, "remove pruned branch")
		}
	}
	c.branches = kept
	return nil
}
