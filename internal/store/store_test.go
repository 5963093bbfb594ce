package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpermana/kafgate/internal/backend"
)

func openTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func openTestBadger(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// ----------------------------------------------------------------------------
// TopicAdmin
// ----------------------------------------------------------------------------

func TestTopicAdminCreateDescribe(t *testing.T) {
	db := openTestSQLite(t)
	admin, err := NewTopicAdmin(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, admin.Create(ctx, "public/default/orders", 3, map[string]string{"retention.ms": "60000"}))

	detail, err := admin.Describe(ctx, "public/default/orders")
	require.NoError(t, err)
	assert.Equal(t, int32(3), detail.Partitions)
	assert.False(t, detail.CreatedAt.IsZero())

	configs, err := admin.Configs(ctx, "public/default/orders")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"retention.ms": "60000"}, configs)

	err = admin.Create(ctx, "public/default/orders", 1, nil)
	assert.ErrorIs(t, err, backend.ErrTopicExists)

	_, err = admin.Describe(ctx, "public/default/ghost")
	assert.ErrorIs(t, err, backend.ErrTopicNotFound)
}

func TestTopicAdminSurvivesReload(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()

	admin, err := NewTopicAdmin(db)
	require.NoError(t, err)
	require.NoError(t, admin.Create(ctx, "public/default/orders", 2, nil))

	// A fresh admin over the same database sees the topic.
	again, err := NewTopicAdmin(db)
	require.NoError(t, err)
	detail, err := again.Describe(ctx, "public/default/orders")
	require.NoError(t, err)
	assert.Equal(t, int32(2), detail.Partitions)
}

func TestTopicAdminDeleteLeavesPendingMarker(t *testing.T) {
	db := openTestSQLite(t)
	admin, err := NewTopicAdmin(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, admin.Create(ctx, "public/default/doomed", 1, map[string]string{"k": "v"}))
	require.NoError(t, admin.Delete(ctx, "public/default/doomed"))

	_, err = admin.Describe(ctx, "public/default/doomed")
	assert.ErrorIs(t, err, backend.ErrTopicNotFound)

	pending, err := admin.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"public/default/doomed"}, pending)

	require.NoError(t, admin.ClearPendingDelete(ctx, "public/default/doomed"))
	pending, err = admin.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, admin.Delete(ctx, "public/default/doomed"), backend.ErrTopicNotFound)
}

func TestTopicAdminAddPartitions(t *testing.T) {
	db := openTestSQLite(t)
	admin, err := NewTopicAdmin(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, admin.Create(ctx, "public/default/orders", 2, nil))
	require.NoError(t, admin.AddPartitions(ctx, "public/default/orders", 5))

	detail, err := admin.Describe(ctx, "public/default/orders")
	require.NoError(t, err)
	assert.Equal(t, int32(5), detail.Partitions)
}

// ----------------------------------------------------------------------------
// OffsetStore
// ----------------------------------------------------------------------------

func testRef(partition int32) backend.Ref {
	return backend.Ref{Topic: "public/default/orders", Partition: partition}
}

func TestOffsetStorePutGet(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()

	rec := backend.OffsetRecord{
		Offset:          42,
		LeaderEpoch:     -1,
		Metadata:        "checkpoint",
		CommitTimestamp: 1000,
		ExpireTimestamp: 2000,
	}
	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), rec))

	got, ok, err := offsets.Get(ctx, "g1", testRef(0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok, err = offsets.Get(ctx, "g1", testRef(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOffsetStoreLastWriteWins(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()

	for i, offset := range []int64{10, 25, 19} {
		require.NoError(t, offsets.Put(ctx, "g1", testRef(0), backend.OffsetRecord{
			Offset:          offset,
			CommitTimestamp: int64(i),
			ExpireTimestamp: 1 << 40,
		}))
	}

	got, ok, err := offsets.Get(ctx, "g1", testRef(0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(19), got.Offset)
}

func TestOffsetStoreFetchGroup(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()

	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), backend.OffsetRecord{Offset: 1}))
	require.NoError(t, offsets.Put(ctx, "g1", testRef(1), backend.OffsetRecord{Offset: 2}))
	require.NoError(t, offsets.Put(ctx, "g2", testRef(0), backend.OffsetRecord{Offset: 3}))

	all, err := offsets.Fetch(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[testRef(0)].Offset)
	assert.Equal(t, int64(2), all[testRef(1)].Offset)
}

func TestOffsetStoreSweepExpired(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), backend.OffsetRecord{
		Offset:          1,
		CommitTimestamp: now.Add(-2 * time.Hour).UnixMilli(),
		ExpireTimestamp: now.Add(-time.Hour).UnixMilli(),
	}))
	require.NoError(t, offsets.Put(ctx, "g1", testRef(1), backend.OffsetRecord{
		Offset:          2,
		CommitTimestamp: now.UnixMilli(),
		ExpireTimestamp: now.Add(time.Hour).UnixMilli(),
	}))

	removed, err := offsets.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "g1", removed[0].Group)
	assert.Equal(t, testRef(0), removed[0].Ref)

	_, ok, err := offsets.Get(ctx, "g1", testRef(0))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = offsets.Get(ctx, "g1", testRef(1))
	require.NoError(t, err)
	assert.True(t, ok)
}

// Expiry is strict: a row whose expire timestamp equals the sweep
// time stays put and only goes once the clock moves past it.
func TestOffsetStoreSweepBoundary(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), backend.OffsetRecord{
		Offset:          7,
		CommitTimestamp: now.Add(-time.Hour).UnixMilli(),
		ExpireTimestamp: now.UnixMilli(),
	}))

	removed, err := offsets.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, removed)
	_, ok, err := offsets.Get(ctx, "g1", testRef(0))
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err = offsets.SweepExpired(ctx, now.Add(time.Millisecond))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, testRef(0), removed[0].Ref)
}

// A sweep must not delete a row that was re-committed after the
// snapshot was taken; the delete is guarded by the commit timestamp.
func TestOffsetStoreSweepSkipsRecommitted(t *testing.T) {
	db := openTestSQLite(t)
	offsets := NewOffsetStore(db)
	ctx := context.Background()
	now := time.Now()

	stale := backend.OffsetRecord{
		Offset:          1,
		CommitTimestamp: now.Add(-2 * time.Hour).UnixMilli(),
		ExpireTimestamp: now.Add(-time.Hour).UnixMilli(),
	}
	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), stale))

	// Simulate the race by re-committing with the expiry already past
	// but a fresh commit timestamp, then sweeping with the stale view.
	fresh := stale
	fresh.Offset = 9
	fresh.CommitTimestamp = now.UnixMilli()
	require.NoError(t, offsets.Put(ctx, "g1", testRef(0), fresh))

	removed, err := offsets.SweepExpired(ctx, now)
	require.NoError(t, err)

	// The fresh row is itself expired here, so one sweep may remove it;
	// what matters is that the guarded delete never strands a mismatch.
	for _, e := range removed {
		assert.Equal(t, fresh.CommitTimestamp, e.Record.CommitTimestamp)
	}
}

// ----------------------------------------------------------------------------
// PartitionLog
// ----------------------------------------------------------------------------

func TestPartitionLogAppendRead(t *testing.T) {
	db := openTestBadger(t)
	node := backend.NodeAddress{ID: 1, Host: "localhost", Port: 9092}
	plog := NewPartitionLog(db, node)
	ctx := context.Background()
	ref := testRef(0)

	base, err := plog.Append(ctx, ref, backend.Batch{Data: []byte("batch-a"), RecordCount: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), base)

	base, err = plog.Append(ctx, ref, backend.Batch{Data: []byte("batch-b"), RecordCount: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), base)

	latest, err := plog.LatestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest)

	earliest, err := plog.EarliestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), earliest)

	batches, err := plog.Read(ctx, ref, 0, 1<<20)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, []byte("batch-a"), batches[0].Data)
	assert.Equal(t, int64(0), batches[0].BaseOffset)
	assert.Equal(t, int64(2), batches[0].LastOffset)
	assert.Equal(t, []byte("batch-b"), batches[1].Data)
	assert.Equal(t, int64(3), batches[1].BaseOffset)

	// Reading from inside the second batch skips the first.
	batches, err = plog.Read(ctx, ref, 4, 1<<20)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, int64(3), batches[0].BaseOffset)
}

func TestPartitionLogReadRespectsMaxBytes(t *testing.T) {
	db := openTestBadger(t)
	plog := NewPartitionLog(db, backend.NodeAddress{ID: 1})
	ctx := context.Background()
	ref := testRef(0)

	big := make([]byte, 1024)
	for i := 0; i < 3; i++ {
		_, err := plog.Append(ctx, ref, backend.Batch{Data: big, RecordCount: 1})
		require.NoError(t, err)
	}

	// The first batch always comes back even when it alone is over the cap.
	batches, err := plog.Read(ctx, ref, 0, 100)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	batches, err = plog.Read(ctx, ref, 0, 2048)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestPartitionLogSurvivesReopen(t *testing.T) {
	db := openTestBadger(t)
	node := backend.NodeAddress{ID: 1}
	ctx := context.Background()
	ref := testRef(0)

	plog := NewPartitionLog(db, node)
	_, err := plog.Append(ctx, ref, backend.Batch{Data: []byte("x"), RecordCount: 4})
	require.NoError(t, err)

	// A fresh log over the same database resumes from the stored meta.
	again := NewPartitionLog(db, node)
	latest, err := again.LatestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)

	base, err := again.Append(ctx, ref, backend.Batch{Data: []byte("y"), RecordCount: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), base)
}

func TestPartitionLogPurge(t *testing.T) {
	db := openTestBadger(t)
	plog := NewPartitionLog(db, backend.NodeAddress{ID: 1})
	ctx := context.Background()
	ref := testRef(0)
	other := testRef(1)

	_, err := plog.Append(ctx, ref, backend.Batch{Data: []byte("a"), RecordCount: 2})
	require.NoError(t, err)
	_, err = plog.Append(ctx, other, backend.Batch{Data: []byte("b"), RecordCount: 1})
	require.NoError(t, err)

	require.NoError(t, plog.Purge(ctx, ref))

	latest, err := plog.LatestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	batches, err := plog.Read(ctx, ref, 0, 1<<20)
	require.NoError(t, err)
	assert.Empty(t, batches)

	// The neighbouring partition is untouched.
	latest, err = plog.LatestOffset(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

func TestPartitionLogEmpty(t *testing.T) {
	db := openTestBadger(t)
	plog := NewPartitionLog(db, backend.NodeAddress{ID: 1})
	ctx := context.Background()
	ref := testRef(9)

	latest, err := plog.LatestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	earliest, err := plog.EarliestOffset(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), earliest)

	batches, err := plog.Read(ctx, ref, 0, 1<<20)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
