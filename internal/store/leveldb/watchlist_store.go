// Package leveldb persists the watch-list in an embedded LevelDB database so
// a single-node deployment survives restarts without PostgreSQL.
package leveldb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// Key layout:
//
//	w/<seq uint64 big-endian> -> address
//	a/<lower(address)>        -> seq
//	m/seq                     -> last issued seq
var (
	prefixWatch = []byte("w/")
	prefixAddr  = []byte("a/")
	keySeq      = []byte("m/seq")
)

// WatchlistStore implements domain.WatchlistStore on LevelDB.
type WatchlistStore struct {
	db *leveldb.DB
	// mu serialises writers so seq allocation and the duplicate check agree.
	mu sync.Mutex
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// Open opens or creates the database at path.
func Open(path string) (*WatchlistStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return &WatchlistStore{db: db}, nil
}

// Close closes the database.
func (s *WatchlistStore) Close() error {
	return s.db.Close()
}

// List returns addresses in insertion order.
func (s *WatchlistStore) List(_ context.Context) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefixWatch), nil)
	defer iter.Release()

	addrs := []string{}
	for iter.Next() {
		addrs = append(addrs, string(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb: list watchlist: %w", err)
	}
	return addrs, nil
}

func (s *WatchlistStore) Add(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ak := addrKey(address)
	if ok, err := s.db.Has(ak, nil); err != nil {
		return fmt.Errorf("leveldb: add %s: %w", address, err)
	} else if ok {
		return fmt.Errorf("leveldb: add %s: %w", address, domain.ErrAlreadyExists)
	}

	seq, err := s.lastSeq()
	if err != nil {
		return err
	}
	seq++

	batch := new(leveldb.Batch)
	putEntry(batch, seq, address)
	batch.Put(keySeq, encodeSeq(seq))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: add %s: %w", address, err)
	}
	return nil
}

func (s *WatchlistStore) Remove(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ak := addrKey(address)
	raw, err := s.db.Get(ak, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("leveldb: remove %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("leveldb: remove %s: %w", address, err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(ak)
	batch.Delete(watchKey(binary.BigEndian.Uint64(raw)))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: remove %s: %w", address, err)
	}
	return nil
}

// Replace swaps the whole watch-list in one atomic batch.
func (s *WatchlistStore) Replace(_ context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, prefix := range [][]byte{prefixWatch, prefixAddr} {
		iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return fmt.Errorf("leveldb: replace: %w", err)
		}
	}

	seq, err := s.lastSeq()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		lower := strings.ToLower(a)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		seq++
		putEntry(batch, seq, a)
	}
	batch.Put(keySeq, encodeSeq(seq))

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: replace: %w", err)
	}
	return nil
}

func (s *WatchlistStore) lastSeq() (uint64, error) {
	raw, err := s.db.Get(keySeq, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("leveldb: read seq: %w", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func putEntry(batch *leveldb.Batch, seq uint64, address string) {
	batch.Put(watchKey(seq), []byte(address))
	batch.Put(addrKey(address), encodeSeq(seq))
}

func watchKey(seq uint64) []byte {
	return append(append([]byte(nil), prefixWatch...), encodeSeq(seq)...)
}

func addrKey(address string) []byte {
	return append(append([]byte(nil), prefixAddr...), strings.ToLower(address)...)
}

func encodeSeq(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}
