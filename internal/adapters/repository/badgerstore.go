package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/aggregate"
)

// Key prefixes, one per namespace.
const (
	prefixNode byte = 0x01
	prefixEdge byte = 0x02
)

// Edge keys are A, separator, B. Archetypes are hex, so the separator never
// appears inside them and byte order equals (A, B) order.
const edgeSeparator byte = 0x00

const (
	tallySize      = 16
	mergeChunkSize = 1000
)

// BadgerStore keeps tallies in BadgerDB so tables larger than memory can
// spill to disk.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens an empty store. An empty dir keeps the data in memory;
// tallies left in dir by an earlier run are dropped.
func NewBadgerStore(opts ...Option) (*BadgerStore, error) {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}

	bo := badger.DefaultOptions(s.dir)
	if s.dir == "" {
		bo = bo.WithInMemory(true)
	}
	bo = bo.WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	if s.dir != "" {
		if err := db.DropAll(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("reset badger store %s: %w", s.dir, err)
		}
	}
	return &BadgerStore{db: db}, nil
}

func encodeKey(k aggregate.Key) ([]byte, error) {
	switch k.Kind {
	case aggregate.KindNode:
		out := make([]byte, 0, 1+len(k.A))
		out = append(out, prefixNode)
		return append(out, k.A...), nil
	case aggregate.KindEdge:
		out := make([]byte, 0, 2+len(k.A)+len(k.B))
		out = append(out, prefixEdge)
		out = append(out, k.A...)
		out = append(out, edgeSeparator)
		return append(out, k.B...), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k.Kind)
	}
}

func decodeKey(raw []byte) (aggregate.Key, error) {
	if len(raw) == 0 {
		return aggregate.Key{}, ErrCorruptKey
	}
	switch raw[0] {
	case prefixNode:
		return aggregate.NodeKey(string(raw[1:])), nil
	case prefixEdge:
		i := bytes.IndexByte(raw[1:], edgeSeparator)
		if i < 0 {
			return aggregate.Key{}, ErrCorruptKey
		}
		return aggregate.EdgeKey(string(raw[1:1+i]), string(raw[2+i:])), nil
	default:
		return aggregate.Key{}, ErrCorruptKey
	}
}

func prefixOf(kind aggregate.Kind) ([]byte, error) {
	switch kind {
	case aggregate.KindNode:
		return []byte{prefixNode}, nil
	case aggregate.KindEdge:
		return []byte{prefixEdge}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

func encodeTally(t aggregate.Tally) []byte {
	out := make([]byte, tallySize)
	binary.BigEndian.PutUint64(out[:8], uint64(t.Count))
	binary.BigEndian.PutUint64(out[8:], uint64(t.Wins))
	return out
}

func decodeTally(raw []byte) (aggregate.Tally, error) {
	if len(raw) != tallySize {
		return aggregate.Tally{}, fmt.Errorf("%w: value of %d bytes", ErrCorruptValue, len(raw))
	}
	return aggregate.Tally{
		Count: int64(binary.BigEndian.Uint64(raw[:8])),
		Wins:  int64(binary.BigEndian.Uint64(raw[8:])),
	}, nil
}

// Merge adds every partial to the stored tally, committing in chunks.
func (s *BadgerStore) Merge(ctx context.Context, batch []aggregate.Partial) error {
	for start := 0; start < len(batch); start += mergeChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+mergeChunkSize, len(batch))
		if err := s.db.Update(func(txn *badger.Txn) error {
			return mergeChunk(txn, batch[start:end])
		}); err != nil {
			return err
		}
	}
	return nil
}

func mergeChunk(txn *badger.Txn, chunk []aggregate.Partial) error {
	for _, p := range chunk {
		key, err := encodeKey(p.Key)
		if err != nil {
			return err
		}
		current := aggregate.Tally{}
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				current, err = decodeTally(val)
				return err
			}); err != nil {
				return err
			}
		}
		if err := txn.Set(key, encodeTally(current.Add(p.Tally))); err != nil {
			return err
		}
	}
	return nil
}

// Range calls fn for every key of kind, in key order.
func (s *BadgerStore) Range(ctx context.Context, kind aggregate.Kind, fn func(aggregate.Partial) error) error {
	prefix, err := prefixOf(kind)
	if err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key, err := decodeKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			var t aggregate.Tally
			if err := item.Value(func(val []byte) error {
				t, err = decodeTally(val)
				return err
			}); err != nil {
				return err
			}
			if err := fn(aggregate.Partial{Key: key, Tally: t}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len counts the keys of kind.
func (s *BadgerStore) Len(ctx context.Context, kind aggregate.Kind) (int, error) {
	prefix, err := prefixOf(kind)
	if err != nil {
		return 0, err
	}
	n := 0
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
