// Package backend defines the storage-facing contracts the gateway
// translates client requests onto. Implementations live in internal/store.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bpermana/kafgate/internal/naming"
)

// Sentinel errors implementations return so handlers can map them to
// wire error codes without string matching.
var (
	ErrTopicNotFound     = errors.New("topic not found")
	ErrTopicExists       = errors.New("topic already exists")
	ErrInvalidTopicName  = errors.New("invalid topic name")
	ErrNamespaceRejected = errors.New("namespace rejected")
	ErrOffsetOutOfRange  = errors.New("offset out of range")
)

// Ref identifies a single partition of a backend topic.
type Ref struct {
	Topic     string // fully qualified backend name (tenant/namespace/local)
	Partition int32
}

func (r Ref) String() string {
	return fmt.Sprintf("%s%s%d", r.Topic, naming.PartitionSuffix, r.Partition)
}

// TopicDetail is what Describe returns for an existing topic.
type TopicDetail struct {
	Name       string // backend name
	Partitions int32
	CreatedAt  time.Time
}

// NodeAddress is the advertised location of a partition owner.
type NodeAddress struct {
	ID   int32
	Host string
	Port int32
}

// Batch is an opaque client record batch plus the header fields the
// gateway already inspected.
type Batch struct {
	Data        []byte
	RecordCount int32
}

// OffsetRecord is one committed consumer position.
type OffsetRecord struct {
	Offset          int64
	LeaderEpoch     int32
	Metadata        string
	CommitTimestamp int64 // unix millis
	ExpireTimestamp int64 // unix millis
}

// ExpiredOffset names an offset the sweeper removed.
type ExpiredOffset struct {
	Group  string
	Ref    Ref
	Record OffsetRecord
}

// TopicAdmin manages topic metadata: existence, partition counts and
// per-topic configuration overrides.
type TopicAdmin interface {
	// Create registers a topic with the given partition count. Configs
	// are opaque key/value overrides recorded alongside the topic.
	Create(ctx context.Context, name string, partitions int32, configs map[string]string) error

	// Delete removes a topic and records it as pending removal until
	// its partition data has been reclaimed.
	Delete(ctx context.Context, name string) error

	Describe(ctx context.Context, name string) (TopicDetail, error)
	List(ctx context.Context) ([]string, error)

	// Configs returns the effective overrides for a topic.
	Configs(ctx context.Context, name string) (map[string]string, error)

	// AddPartitions grows a topic to the given total count. The count
	// must be strictly greater than the current one.
	AddPartitions(ctx context.Context, name string, total int32) error

	// PendingDeletes lists topics whose removal is still in flight.
	PendingDeletes(ctx context.Context) ([]string, error)

	// ClearPendingDelete marks a topic's removal as fully reclaimed.
	ClearPendingDelete(ctx context.Context, name string) error
}

// PartitionLog is the append/read surface of partition storage.
type PartitionLog interface {
	// Append stores a batch and returns the base offset assigned to its
	// first record. Offsets are strictly increasing per partition.
	Append(ctx context.Context, ref Ref, batch Batch) (int64, error)

	// Read returns stored batches starting at the first batch containing
	// offset, up to maxBytes of batch data.
	Read(ctx context.Context, ref Ref, offset int64, maxBytes int32) ([]StoredBatch, error)

	// LatestOffset returns the next offset to be assigned (the high
	// watermark); 0 for an empty partition.
	LatestOffset(ctx context.Context, ref Ref) (int64, error)
	EarliestOffset(ctx context.Context, ref Ref) (int64, error)

	// Purge drops all stored batches for a partition.
	Purge(ctx context.Context, ref Ref) error

	// LeaderOf reports the node that owns a partition. ok is false when
	// ownership cannot be resolved.
	LeaderOf(ref Ref) (NodeAddress, bool)
}

// StoredBatch is one batch as it sits in the log.
type StoredBatch struct {
	BaseOffset int64
	LastOffset int64
	Data       []byte
}

// OffsetStore persists committed consumer group offsets.
type OffsetStore interface {
	// Put records a commit. Later commits for the same group/partition
	// replace earlier ones.
	Put(ctx context.Context, group string, ref Ref, rec OffsetRecord) error

	Get(ctx context.Context, group string, ref Ref) (OffsetRecord, bool, error)

	// Fetch returns every committed position for a group.
	Fetch(ctx context.Context, group string) (map[Ref]OffsetRecord, error)

	// SweepExpired removes entries whose expire timestamp is strictly
	// before now and returns what was removed. An entry expiring
	// exactly at now survives the pass.
	SweepExpired(ctx context.Context, now time.Time) ([]ExpiredOffset, error)
}
