package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/bpermana/kafgate/internal/backend"
)

// PartitionLog stores record batches in BadgerDB, one entry per batch,
// keyed by partition and base offset so iteration order is offset order.
type PartitionLog struct {
	db   *DB
	node backend.NodeAddress

	mu     sync.Mutex
	latest map[backend.Ref]int64 // last assigned offset, -1 when unknown
}

type logMeta struct {
	LastOffset int64 `json:"last_offset"`
}

type storedBatch struct {
	BaseOffset int64  `json:"base_offset"`
	LastOffset int64  `json:"last_offset"`
	Data       []byte `json:"data"`
}

func NewPartitionLog(db *DB, node backend.NodeAddress) *PartitionLog {
	return &PartitionLog{
		db:     db,
		node:   node,
		latest: make(map[backend.Ref]int64),
	}
}

func (l *PartitionLog) batchKey(ref backend.Ref, offset int64) []byte {
	return []byte(fmt.Sprintf("p:%s:b:%020d", ref, offset))
}

func (l *PartitionLog) metaKey(ref backend.Ref) []byte {
	return []byte(fmt.Sprintf("p:%s:meta", ref))
}

func (l *PartitionLog) batchPrefix(ref backend.Ref) []byte {
	return []byte(fmt.Sprintf("p:%s:b:", ref))
}

// lastOffsetLocked returns the last assigned offset, loading the meta
// entry on first touch. Callers hold l.mu.
func (l *PartitionLog) lastOffsetLocked(ref backend.Ref) (int64, error) {
	if last, ok := l.latest[ref]; ok {
		return last, nil
	}

	last := int64(-1)
	err := l.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get(l.metaKey(ref))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var m logMeta
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			last = m.LastOffset
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	l.latest[ref] = last
	return last, nil
}

func (l *PartitionLog) Append(ctx context.Context, ref backend.Ref, batch backend.Batch) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.lastOffsetLocked(ref)
	if err != nil {
		return 0, err
	}

	base := last + 1
	sb := storedBatch{
		BaseOffset: base,
		LastOffset: base + int64(batch.RecordCount) - 1,
		Data:       batch.Data,
	}

	val, err := json.Marshal(sb)
	if err != nil {
		return 0, err
	}
	metaVal, _ := json.Marshal(logMeta{LastOffset: sb.LastOffset})

	err = l.db.Badger().Update(func(txn *badger.Txn) error {
		if err := txn.Set(l.batchKey(ref, base), val); err != nil {
			return err
		}
		return txn.Set(l.metaKey(ref), metaVal)
	})
	if err != nil {
		return 0, err
	}

	l.latest[ref] = sb.LastOffset
	return base, nil
}

func (l *PartitionLog) Read(ctx context.Context, ref backend.Ref, offset int64, maxBytes int32) ([]backend.StoredBatch, error) {
	var out []backend.StoredBatch
	size := int32(0)

	err := l.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = l.batchPrefix(ref)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sb storedBatch
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sb)
			})
			if err != nil {
				return err
			}

			// Skip batches that end before the requested offset.
			if sb.LastOffset < offset {
				continue
			}

			// Return at least one batch even when it alone exceeds maxBytes.
			if len(out) > 0 && size+int32(len(sb.Data)) > maxBytes {
				break
			}

			out = append(out, backend.StoredBatch{
				BaseOffset: sb.BaseOffset,
				LastOffset: sb.LastOffset,
				Data:       sb.Data,
			})
			size += int32(len(sb.Data))
		}
		return nil
	})
	return out, err
}

func (l *PartitionLog) LatestOffset(ctx context.Context, ref backend.Ref) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.lastOffsetLocked(ref)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (l *PartitionLog) EarliestOffset(ctx context.Context, ref backend.Ref) (int64, error) {
	earliest := int64(0)

	err := l.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = l.batchPrefix(ref)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var sb storedBatch
			if err := json.Unmarshal(val, &sb); err != nil {
				return err
			}
			earliest = sb.BaseOffset
			return nil
		})
	})
	return earliest, err
}

func (l *PartitionLog) Purge(ctx context.Context, ref backend.Ref) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.db.Badger().Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("p:%s:", ref))
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	delete(l.latest, ref)
	return nil
}

func (l *PartitionLog) LeaderOf(ref backend.Ref) (backend.NodeAddress, bool) {
	return l.node, true
}

var _ backend.PartitionLog = (*PartitionLog)(nil)
