package node

import (
	"sync"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/transaction"
)

// WatermarkFunc reports the current wallet projection for an address on
// the authoritative branch, used by DiscardStale after a reorg.
type WatermarkFunc func(address crypto.Hash) transaction.Status

// Pool holds transactions this node has seen but that haven't yet landed
// in a block, keyed by the address whose replay watermark they advance:
// the sender for a Transfer, the site for a Page. It implements
// miner.Pool; kept here rather than in package miner to avoid the import
// cycle that would create.
type Pool struct {
	mu        sync.Mutex
	transfers map[crypto.Hash]map[uint32]*transaction.Transfer
	pages     map[crypto.Hash]map[uint32]*transaction.Page
}

// NewPool builds an empty pool.
func NewPool() *Pool {
	return &Pool{
		transfers: make(map[crypto.Hash]map[uint32]*transaction.Transfer),
		pages:     make(map[crypto.Hash]map[uint32]*transaction.Page),
	}
}

// AddTransfer admits t into the pool, reporting false if an entry with
// the same sender and id is already present.
func (p *Pool) AddTransfer(t *transaction.Transfer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sender := t.Header.Address()
	byID, ok := p.transfers[sender]
	if !ok {
		byID = make(map[uint32]*transaction.Transfer)
		p.transfers[sender] = byID
	}
	if _, dup := byID[t.Header.ID]; dup {
		return false
	}
	byID[t.Header.ID] = t
	return true
}

// AddPage admits p into the pool, reporting false if an entry with the
// same site and id is already present.
func (p *Pool) AddPage(pg *transaction.Page) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	byID, ok := p.pages[pg.Site]
	if !ok {
		byID = make(map[uint32]*transaction.Page)
		p.pages[pg.Site] = byID
	}
	if _, dup := byID[pg.ID]; dup {
		return false
	}
	byID[pg.ID] = pg
	return true
}

// PendingTransfers returns every transfer currently queued. Implements
// miner.Pool.
func (p *Pool) PendingTransfers() []*transaction.Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*transaction.Transfer
	for _, byID := range p.transfers {
		for _, t := range byID {
			out = append(out, t)
		}
	}
	return out
}

// PendingPages returns every page currently queued. Implements
// miner.Pool.
func (p *Pool) PendingPages() []*transaction.Page {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*transaction.Page
	for _, byID := range p.pages {
		for _, pg := range byID {
			out = append(out, pg)
		}
	}
	return out
}

// RemoveLanded discards every entry in b from the pool, called once b is
// appended to the longest branch: those transactions are no longer
// pending, they're confirmed.
func (p *Pool) RemoveLanded(b *block.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range b.Transfers {
		sender := t.Header.Address()
		if byID, ok := p.transfers[sender]; ok {
			delete(byID, t.Header.ID)
		}
	}
	for _, pg := range b.Pages {
		if byID, ok := p.pages[pg.Site]; ok {
			delete(byID, pg.ID)
		}
	}
}

// DiscardStale drops every pooled entry whose id no longer exceeds the
// new longest branch's watermark for its address, called after a reorg
// changes which branch is authoritative: anything with id at or below
// the sender's max seen id there can never land again.
func (p *Pool) DiscardStale(watermarkFor WatermarkFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sender, byID := range p.transfers {
		watermark := watermarkFor(sender).HighestID
		for id := range byID {
			if int64(id) <= watermark {
				delete(byID, id)
			}
		}
	}
	for site, byID := range p.pages {
		watermark := watermarkFor(site).HighestID
		for id := range byID {
			if int64(id) <= watermark {
				delete(byID, id)
			}
		}
	}
}
