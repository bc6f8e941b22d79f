package peer

import (
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/syndtr/goleveldb/leveldb"
)

// addrBook is a goleveldb-backed persistent set of known peer addresses,
// so a restarted node can reconnect to its cluster without waiting to be
// re-gossiped.
type addrBook struct {
	db *leveldb.DB
}

func openAddrBook(path string) (*addrBook, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "open address book")
	}
	return &addrBook{db: db}, nil
}

func (b *addrBook) Close() error {
	return b.db.Close()
}

// Add persists address as known.
func (b *addrBook) Add(address string) error {
	if err := b.db.Put([]byte(address), []byte{1}, nil); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "write address book")
	}
	return nil
}

// All returns every address ever persisted.
func (b *addrBook) All() ([]string, error) {
	iter := b.db.NewIterator(nil, nil)
	defer iter.Release()

	var out []string
	for iter.Next() {
		out = append(out, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "iterate address book")
	}
	return out, nil
}
