package chain

import (
	"encoding/binary"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// location records where a block hash was last seen: which branch and at
// what id. Chain.Add consults this before scanning every branch, so a
// re-gossiped block that's already known anywhere is rejected in one
// lookup instead of one per branch.
type location struct {
	branch string
	id     uint64
}

// blockIndex is a goleveldb-backed map from block hash to location. The
// bloom filter is tuned for point lookups; compression is off since
// block hashes don't compress.
type blockIndex struct {
	db *leveldb.DB
}

func openBlockIndex(path string) (*blockIndex, error) {
	opts := &opt.Options{
		Filter:      filter.NewBloomFilter(10),
		Compression: opt.NoCompression,
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "open block index")
	}
	return &blockIndex{db: db}, nil
}

func (idx *blockIndex) Close() error {
	return idx.db.Close()
}

func (idx *blockIndex) put(hash crypto.Hash, loc location) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], loc.id)
	val8 := append(val[:], []byte(loc.branch)...)
	if err := idx.db.Put(idx.key(hash), val8, nil); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "write block index")
	}
	return nil
}

func (idx *blockIndex) key(hash crypto.Hash) []byte {
	k := make([]byte, crypto.HashSize)
	copy(k, hash[:])
	return k
}

func (idx *blockIndex) get(hash crypto.Hash) (location, bool, error) {
	val, err := idx.db.Get(idx.key(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return location{}, false, nil
	}
	if err != nil {
		return location{}, false, ledgererr.Wrap(ledgererr.KindIOError, err, "read block index")
	}
	if len(val) < 8 {
		return location{}, false, ledgererr.New(ledgererr.KindIOError, "corrupt block index entry")
	}
	return location{
		id:     binary.LittleEndian.Uint64(val[:8]),
		branch: string(val[8:]),
	}, true, nil
}
