package chain

import (
	"os"
	"sort"
	"strconv"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/transaction"
)

// Branch is one candidate history of blocks: a chunked on-disk block
// store plus the cumulative site-state projection for that history.
// Competing branches share a common prefix but each stores its blocks
// redundantly from the fork point onward.
type Branch struct {
	name  string
	dir   string
	idx   *blockIndex
	sites *siteState

	top *block.Block

	cachedChunkID uint64
	cachedChunk   []*block.Block
	chunkLoaded   bool
}

func newBranch(dir, name string, idx *blockIndex) (*Branch, error) {
	sites, err := openSiteState(sitesDir(dir))
	if err != nil {
		return nil, err
	}
	return &Branch{name: name, dir: dir, idx: idx, sites: sites}, nil
}

// loadBranch reopens a branch whose blocks already exist on disk,
// restoring its tip by scanning chunk files from the highest down.
func loadBranch(dir, name string, idx *blockIndex) (*Branch, error) {
	br, err := newBranch(dir, name, idx)
	if err != nil {
		return nil, err
	}

	top, err := findTopBlock(dir)
	if err != nil {
		return nil, err
	}
	br.top = top
	return br, nil
}

func sitesDir(branchDir string) string {
	return branchDir + string(os.PathSeparator) + "sites"
}

func findTopBlock(dir string) (*block.Block, error) {
	entries, err := os.ReadDir(blocksDir(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var chunkIDs []uint64
	for _, e := range entries {
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		chunkIDs = append(chunkIDs, id)
	}
	sort.Slice(chunkIDs, func(i, j int) bool { return chunkIDs[i] > chunkIDs[j] })

	for _, cid := range chunkIDs {
		blocks, err := loadChunk(dir, cid)
		if err != nil {
			return nil, err
		}
		if len(blocks) > 0 {
			return blocks[len(blocks)-1], nil
		}
	}
	return nil, nil
}

// Tip implements block.History.
func (br *Branch) Tip() *block.Block {
	return br.top
}

// TopID returns the id of this branch's tip, or 0 with ok=false if the
// branch is still empty.
func (br *Branch) TopID() (uint64, bool) {
	if br.top == nil {
		return 0, false
	}
	return br.top.ID, true
}

// BlockByID implements block.History.
func (br *Branch) BlockByID(id uint64) (*block.Block, bool) {
	if br.top != nil && id == br.top.ID {
		return br.top, true
	}

	cid := chunkIDFor(id)
	if !br.chunkLoaded || br.cachedChunkID != cid {
		blocks, err := loadChunk(br.dir, cid)
		if err != nil {
			return nil, false
		}
		br.cachedChunk = blocks
		br.cachedChunkID = cid
		br.chunkLoaded = true
	}

	offset := id % ChunkSize
	if int(offset) >= len(br.cachedChunk) {
		return nil, false
	}
	b := br.cachedChunk[offset]
	if b.ID != id {
		return nil, false
	}
	return b, true
}

// SampleTimestamps implements block.History: the window is
// difficulty.SampleWindow blocks ending at endID.
func (br *Branch) SampleTimestamps(endID uint64) (*int64, *int64) {
	if endID+1 < uint64(difficulty.SampleWindow) {
		return nil, nil
	}
	startID := endID + 1 - uint64(difficulty.SampleWindow)

	startBlock, ok := br.BlockByID(startID)
	if !ok {
		return nil, nil
	}
	endBlock, ok := br.BlockByID(endID)
	if !ok {
		return nil, nil
	}
	start := startBlock.TimestampMs
	end := endBlock.TimestampMs
	return &start, &end
}

// TakeSample returns the difficulty sampling window ending at this
// branch's current tip, the window the next candidate block's target is
// computed from.
func (br *Branch) TakeSample() (*int64, *int64) {
	if br.top == nil {
		return nil, nil
	}
	return br.SampleTimestamps(br.top.ID)
}

// WalletStatus implements block.History by folding every block in this
// branch's history, in order. O(branch length); acceptable at this
// repository's scope, where no wallet-status cache layer is specified.
func (br *Branch) WalletStatus(address crypto.Hash) transaction.Status {
	if br.top == nil {
		return transaction.ZeroStatus()
	}
	return br.walletStatusThrough(address, br.top.ID)
}

// walletStatusThrough folds blocks 0..endID inclusive for address.
func (br *Branch) walletStatusThrough(address crypto.Hash, endID uint64) transaction.Status {
	status := transaction.ZeroStatus()
	for id := uint64(0); id <= endID; id++ {
		b, ok := br.BlockByID(id)
		if !ok {
			break
		}
		next, ok := b.UpdateWalletStatus(address, status)
		if !ok {
			break
		}
		status = next
	}
	return status
}

// nextExpectedID is the id a block must carry to extend this branch
// directly.
func (br *Branch) nextExpectedID() uint64 {
	if br.top == nil {
		return 0
	}
	return br.top.ID + 1
}

// Add validates b against this branch's history and, if valid, appends
// it: writes it to its chunk file, folds its pages into the site state,
// records its hash in the shared block index, and advances the tip.
func (br *Branch) Add(b *block.Block) error {
	if err := b.Validate(br, nowMs()); err != nil {
		return err
	}
	return br.appendTrusted(b)
}

// appendTrusted appends b without validating it, for blocks already
// proven valid on another branch's identical prefix (used when forking).
func (br *Branch) appendTrusted(b *block.Block) error {
	if err := appendBlockToChunk(br.dir, b); err != nil {
		return err
	}
	return br.applyTrustedInMemory(b)
}

// applyTrustedInMemory records b's effects without touching its chunk
// file, for blocks whose bytes were already copied verbatim from another
// branch.
func (br *Branch) applyTrustedInMemory(b *block.Block) error {
	if err := br.sites.ApplyBlock(b); err != nil {
		return err
	}
	if br.idx != nil {
		if err := br.idx.put(b.Hash(), location{branch: br.name, id: b.ID}); err != nil {
			return err
		}
	}
	br.top = b
	if br.chunkLoaded && br.cachedChunkID == chunkIDFor(b.ID) {
		br.cachedChunk = append(br.cachedChunk, b)
	}
	return nil
}

// Close releases the branch's open resources.
func (br *Branch) Close() error {
	return br.sites.Close()
}
