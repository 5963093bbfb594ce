package store

import (
	"context"
	"sync"
	"time"

	"github.com/bpermana/kafgate/internal/backend"
)

// TopicAdmin is the SQLite-backed topic metadata store. Topic rows are
// cached in memory; the database is the source of truth across restarts.
type TopicAdmin struct {
	db     *SQLiteDB
	mu     sync.RWMutex
	topics map[string]*backend.TopicDetail
}

func NewTopicAdmin(db *SQLiteDB) (*TopicAdmin, error) {
	a := &TopicAdmin{
		db:     db,
		topics: make(map[string]*backend.TopicDetail),
	}
	if err := a.loadTopics(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *TopicAdmin) loadTopics() error {
	rows, err := a.db.DB().Query("SELECT name, partitions, created_at FROM topics")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d backend.TopicDetail
		var createdAtMs int64
		if err := rows.Scan(&d.Name, &d.Partitions, &createdAtMs); err != nil {
			return err
		}
		d.CreatedAt = time.UnixMilli(createdAtMs)
		a.topics[d.Name] = &d
	}
	return rows.Err()
}

func (a *TopicAdmin) Create(ctx context.Context, name string, partitions int32, configs map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.topics[name]; exists {
		return backend.ErrTopicExists
	}

	now := time.Now()
	tx, err := a.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO topics (name, partitions, created_at) VALUES (?, ?, ?)",
		name, partitions, now.UnixMilli(),
	); err != nil {
		return err
	}
	for k, v := range configs {
		if _, err := tx.Exec(
			"INSERT INTO topic_configs (topic, key, value) VALUES (?, ?, ?)",
			name, k, v,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	a.topics[name] = &backend.TopicDetail{
		Name:       name,
		Partitions: partitions,
		CreatedAt:  now,
	}
	return nil
}

// Delete removes the topic row and records it under pending_deletes.
// The entry stays visible until the partition data is reclaimed and
// ClearPendingDelete runs.
func (a *TopicAdmin) Delete(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.topics[name]; !exists {
		return backend.ErrTopicNotFound
	}

	tx, err := a.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM topic_configs WHERE topic = ?", name); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM topics WHERE name = ?", name); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO pending_deletes (topic, requested_at) VALUES (?, ?)",
		name, time.Now().UnixMilli(),
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	delete(a.topics, name)
	return nil
}

func (a *TopicAdmin) Describe(ctx context.Context, name string) (backend.TopicDetail, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	d, exists := a.topics[name]
	if !exists {
		return backend.TopicDetail{}, backend.ErrTopicNotFound
	}
	return *d, nil
}

func (a *TopicAdmin) List(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.topics))
	for name := range a.topics {
		names = append(names, name)
	}
	return names, nil
}

func (a *TopicAdmin) Configs(ctx context.Context, name string) (map[string]string, error) {
	a.mu.RLock()
	if _, exists := a.topics[name]; !exists {
		a.mu.RUnlock()
		return nil, backend.ErrTopicNotFound
	}
	a.mu.RUnlock()

	rows, err := a.db.DB().QueryContext(ctx, "SELECT key, value FROM topic_configs WHERE topic = ?", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		configs[k] = v
	}
	return configs, rows.Err()
}

func (a *TopicAdmin) AddPartitions(ctx context.Context, name string, total int32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, exists := a.topics[name]
	if !exists {
		return backend.ErrTopicNotFound
	}

	if _, err := a.db.DB().ExecContext(ctx,
		"UPDATE topics SET partitions = ? WHERE name = ?", total, name,
	); err != nil {
		return err
	}

	d.Partitions = total
	return nil
}

func (a *TopicAdmin) PendingDeletes(ctx context.Context) ([]string, error) {
	rows, err := a.db.DB().QueryContext(ctx, "SELECT topic FROM pending_deletes ORDER BY requested_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *TopicAdmin) ClearPendingDelete(ctx context.Context, name string) error {
	_, err := a.db.DB().ExecContext(ctx, "DELETE FROM pending_deletes WHERE topic = ?", name)
	return err
}

var _ backend.TopicAdmin = (*TopicAdmin)(nil)
