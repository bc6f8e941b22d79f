package transaction

import (
	"bytes"
	"math"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/wire"
)

// PageChunkSize is the number of bytes one page content-chunk hash
// covers. Cost is expressed in fractional multiples of this size, i.e.
// in megabytes of content.
const PageChunkSize = 1024 * 1024

// Input funds a Page: an address and the amount it contributes towards
// the page's cost and fee. A Page is paid for by an explicit input set
// rather than a single signed sender the way a Transfer is.
type Input struct {
	Address crypto.Hash
	Amount  float64
}

// Page is a content-hosting record: an id, the owning site address, the
// ordered content-chunk hashes, the total content length, and a fee.
type Page struct {
	ID         uint32
	Site       crypto.Hash
	DataHashes []crypto.Hash
	DataLength uint64
	Fee        float64
	Inputs     []Input
}

// Cost is the page's storage cost in fractional chunks of content.
func (p *Page) Cost() float64 {
	return float64(p.DataLength) / float64(PageChunkSize)
}

// ExpectedHashCount is the number of content-chunk hashes a page of this
// length must carry.
func (p *Page) ExpectedHashCount() int {
	return int(math.Ceil(p.Cost()))
}

// ValidateContent checks the page-local invariants: fee is
// non-negative, the hash count matches the content length, exactly one
// input funds the site itself, and total input equals cost+fee.
func (p *Page) ValidateContent() error {
	if err := ValidateNonNegative(0, p.Fee); err != nil {
		return err
	}

	if len(p.DataHashes) != p.ExpectedHashCount() {
		return ledgererr.Newf(ledgererr.KindWrongHashCount,
			"page %d: expected %d data hashes for %d bytes, got %d",
			p.ID, p.ExpectedHashCount(), p.DataLength, len(p.DataHashes))
	}

	if len(p.Inputs) == 0 {
		return ledgererr.New(ledgererr.KindUnbalancedInputs, "page has no inputs")
	}

	siteInputs := 0
	var total float64
	for _, in := range p.Inputs {
		if in.Address.Equal(p.Site) {
			siteInputs++
		}
		total += in.Amount
	}
	if siteInputs != 1 {
		return ledgererr.Newf(ledgererr.KindUnbalancedInputs,
			"page %d: expected exactly one input from the site, got %d", p.ID, siteInputs)
	}

	expected := p.Cost() + p.Fee
	if total != expected {
		return ledgererr.Newf(ledgererr.KindUnbalancedInputs,
			"page %d: inputs total %f, expected cost+fee %f", p.ID, total, expected)
	}

	return nil
}

// Update implements Tx. address pays for the page if it appears among
// its inputs; the sum of its contributing inputs is deducted the way a
// Transfer deducts amount+fee from its sender.
func (p *Page) Update(address crypto.Hash, status Status, isBlockWinner bool) (Status, bool) {
	var fromAmount float64
	for _, in := range p.Inputs {
		if in.Address.Equal(address) {
			fromAmount += in.Amount
		}
	}

	if fromAmount > 0 {
		status.Balance -= fromAmount
		if int64(p.ID) <= status.HighestID {
			return Status{}, false
		}
		status.HighestID = int64(p.ID)
	}

	if isBlockWinner {
		status.Balance += p.Fee
	}

	return status, true
}

// Encode writes the Page using the canonical binary encoding.
func (p *Page) Encode(w *bytes.Buffer) error {
	if err := wire.WriteElement(w, p.ID); err != nil {
		return err
	}
	if err := wire.WriteElement(w, p.Site); err != nil {
		return err
	}
	if err := wire.WriteCollectionLen(w, len(p.DataHashes)); err != nil {
		return err
	}
	for _, h := range p.DataHashes {
		if err := wire.WriteElement(w, h); err != nil {
			return err
		}
	}
	if err := wire.WriteElement(w, p.DataLength); err != nil {
		return err
	}
	if err := wire.WriteElement(w, math.Float64bits(p.Fee)); err != nil {
		return err
	}
	if err := wire.WriteCollectionLen(w, len(p.Inputs)); err != nil {
		return err
	}
	for _, in := range p.Inputs {
		if err := wire.WriteElement(w, in.Address); err != nil {
			return err
		}
		if err := wire.WriteElement(w, math.Float64bits(in.Amount)); err != nil {
			return err
		}
	}
	return nil
}

// DecodePage reads a Page using the canonical binary encoding.
func DecodePage(r *bytes.Reader) (*Page, error) {
	var p Page
	if err := wire.ReadElement(r, &p.ID); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &p.Site); err != nil {
		return nil, err
	}

	hashCount, err := wire.ReadCollectionLen(r)
	if err != nil {
		return nil, err
	}
	p.DataHashes = make([]crypto.Hash, hashCount)
	for i := range p.DataHashes {
		if err := wire.ReadElement(r, &p.DataHashes[i]); err != nil {
			return nil, err
		}
	}

	if err := wire.ReadElement(r, &p.DataLength); err != nil {
		return nil, err
	}
	var feeBits uint64
	if err := wire.ReadElement(r, &feeBits); err != nil {
		return nil, err
	}
	p.Fee = math.Float64frombits(feeBits)

	inputCount, err := wire.ReadCollectionLen(r)
	if err != nil {
		return nil, err
	}
	p.Inputs = make([]Input, inputCount)
	for i := range p.Inputs {
		if err := wire.ReadElement(r, &p.Inputs[i].Address); err != nil {
			return nil, err
		}
		var amountBits uint64
		if err := wire.ReadElement(r, &amountBits); err != nil {
			return nil, err
		}
		p.Inputs[i].Amount = math.Float64frombits(amountBits)
	}

	return &p, nil
}
