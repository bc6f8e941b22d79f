package chain

import (
	"bytes"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/transaction"
	"github.com/daglabs/ledgerd/wire"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// SiteRecord is the current published state of a site: the highest page
// id it has published and that page's content description. Pages
// replace rather than append -- a later page id for the same site
// supersedes the one before it, matching the read path the node exposes
// over the (non-goal, externally owned) content store.
type SiteRecord struct {
	LatestPageID uint32
	DataHashes   []crypto.Hash
	DataLength   uint64
}

// siteState is a per-branch, goleveldb-backed projection of every site's
// latest published page: the branch carries forward a cumulative
// snapshot rather than replaying every page on every read.
type siteState struct {
	db *leveldb.DB
}

func openSiteState(path string) (*siteState, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "open site state")
	}
	return &siteState{db: db}, nil
}

func (s *siteState) Close() error {
	return s.db.Close()
}

// ApplyBlock folds every Page in b into the site state, in order.
func (s *siteState) ApplyBlock(b *block.Block) error {
	for _, p := range b.Pages {
		if err := s.applyPage(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *siteState) applyPage(p *transaction.Page) error {
	existing, ok, err := s.Get(p.Site)
	if err != nil {
		return err
	}
	if ok && p.ID <= existing.LatestPageID {
		return nil
	}

	rec := SiteRecord{
		LatestPageID: p.ID,
		DataHashes:   p.DataHashes,
		DataLength:   p.DataLength,
	}
	data, err := encodeSiteRecord(rec)
	if err != nil {
		return err
	}
	if err := s.db.Put(p.Site[:], data, nil); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "write site state")
	}
	return nil
}

// Get returns the current record for site, if any page has ever targeted
// it.
func (s *siteState) Get(site crypto.Hash) (SiteRecord, bool, error) {
	data, err := s.db.Get(site[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return SiteRecord{}, false, nil
	}
	if err != nil {
		return SiteRecord{}, false, ledgererr.Wrap(ledgererr.KindIOError, err, "read site state")
	}
	rec, err := decodeSiteRecord(data)
	if err != nil {
		return SiteRecord{}, false, err
	}
	return rec, true, nil
}

func encodeSiteRecord(rec SiteRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := wire.WriteElement(buf, rec.LatestPageID); err != nil {
		return nil, err
	}
	if err := wire.WriteElement(buf, rec.DataLength); err != nil {
		return nil, err
	}
	if err := wire.WriteCollectionLen(buf, len(rec.DataHashes)); err != nil {
		return nil, err
	}
	for _, h := range rec.DataHashes {
		if err := wire.WriteElement(buf, h); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeSiteRecord(data []byte) (SiteRecord, error) {
	r := bytes.NewReader(data)
	var rec SiteRecord
	if err := wire.ReadElement(r, &rec.LatestPageID); err != nil {
		return SiteRecord{}, err
	}
	if err := wire.ReadElement(r, &rec.DataLength); err != nil {
		return SiteRecord{}, err
	}
	count, err := wire.ReadCollectionLen(r)
	if err != nil {
		return SiteRecord{}, err
	}
	rec.DataHashes = make([]crypto.Hash, count)
	for i := range rec.DataHashes {
		if err := wire.ReadElement(r, &rec.DataHashes[i]); err != nil {
			return SiteRecord{}, err
		}
	}
	return rec, nil
}
