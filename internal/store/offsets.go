package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/bpermana/kafgate/internal/backend"
)

// OffsetStore persists committed consumer group positions in SQLite.
// The primary key (group, topic, partition) makes every commit a
// replace, so the last write for a partition always wins.
type OffsetStore struct {
	db *SQLiteDB
	mu sync.Mutex
}

func NewOffsetStore(db *SQLiteDB) *OffsetStore {
	return &OffsetStore{db: db}
}

func (s *OffsetStore) Put(ctx context.Context, group string, ref backend.Ref, rec backend.OffsetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.DB().ExecContext(ctx,
		`INSERT OR REPLACE INTO offsets
		 (group_id, topic, partition, committed_offset, leader_epoch, metadata, commit_ts, expire_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group, ref.Topic, ref.Partition,
		rec.Offset, rec.LeaderEpoch, rec.Metadata, rec.CommitTimestamp, rec.ExpireTimestamp,
	)
	return err
}

func (s *OffsetStore) Get(ctx context.Context, group string, ref backend.Ref) (backend.OffsetRecord, bool, error) {
	var rec backend.OffsetRecord
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT committed_offset, leader_epoch, metadata, commit_ts, expire_ts
		 FROM offsets WHERE group_id = ? AND topic = ? AND partition = ?`,
		group, ref.Topic, ref.Partition,
	).Scan(&rec.Offset, &rec.LeaderEpoch, &rec.Metadata, &rec.CommitTimestamp, &rec.ExpireTimestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backend.OffsetRecord{}, false, nil
		}
		return backend.OffsetRecord{}, false, err
	}
	return rec, true, nil
}

func (s *OffsetStore) Fetch(ctx context.Context, group string) (map[backend.Ref]backend.OffsetRecord, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT topic, partition, committed_offset, leader_epoch, metadata, commit_ts, expire_ts
		 FROM offsets WHERE group_id = ?`,
		group,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[backend.Ref]backend.OffsetRecord)
	for rows.Next() {
		var ref backend.Ref
		var rec backend.OffsetRecord
		if err := rows.Scan(&ref.Topic, &ref.Partition,
			&rec.Offset, &rec.LeaderEpoch, &rec.Metadata, &rec.CommitTimestamp, &rec.ExpireTimestamp); err != nil {
			return nil, err
		}
		out[ref] = rec
	}
	return out, rows.Err()
}

// SweepExpired snapshots the expired rows first and deletes each one
// only if its commit timestamp is unchanged, so a commit racing the
// sweep survives.
func (s *OffsetStore) SweepExpired(ctx context.Context, now time.Time) ([]backend.ExpiredOffset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT group_id, topic, partition, committed_offset, leader_epoch, metadata, commit_ts, expire_ts
		 FROM offsets WHERE expire_ts < ?`,
		nowMs,
	)
	if err != nil {
		return nil, err
	}

	var snapshot []backend.ExpiredOffset
	for rows.Next() {
		var e backend.ExpiredOffset
		if err := rows.Scan(&e.Group, &e.Ref.Topic, &e.Ref.Partition,
			&e.Record.Offset, &e.Record.LeaderEpoch, &e.Record.Metadata,
			&e.Record.CommitTimestamp, &e.Record.ExpireTimestamp); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot = append(snapshot, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var removed []backend.ExpiredOffset
	for _, e := range snapshot {
		res, err := s.db.DB().ExecContext(ctx,
			`DELETE FROM offsets
			 WHERE group_id = ? AND topic = ? AND partition = ? AND commit_ts = ?`,
			e.Group, e.Ref.Topic, e.Ref.Partition, e.Record.CommitTimestamp,
		)
		if err != nil {
			return removed, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			removed = append(removed, e)
		}
	}
	return removed, nil
}

var _ backend.OffsetStore = (*OffsetStore)(nil)
