package gateway

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/protocol"
)

// makeBatch builds a magic v2 record batch with the given record payload
// sizes. Record bodies are opaque filler; only the framing matters here.
func makeBatch(recordSizes ...int) []byte {
	batch := make([]byte, 61)
	batch[16] = 2 // magic
	binary.BigEndian.PutUint32(batch[57:], uint32(len(recordSizes)))

	for _, size := range recordSizes {
		batch = binary.AppendVarint(batch, int64(size))
		batch = append(batch, make([]byte, size)...)
	}
	return batch
}

func encodeProduce(version int16, topic string, partition int32, batch []byte) []byte {
	e := protocol.NewEncoder()
	if version >= 3 {
		e.WriteNullableString(nil) // transactional id
	}
	e.WriteInt16(-1)    // acks
	e.WriteInt32(30000) // timeout
	e.WriteArrayLen(1, false)
	e.WriteString(topic)
	e.WriteArrayLen(1, false)
	e.WriteInt32(partition)
	e.WriteBytes(batch)
	return e.Bytes()
}

func produceOne(t *testing.T, g *Gateway, topic string, partition int32, batch []byte) protocol.ProduceResponsePartition {
	t.Helper()
	resp, err := g.handleProduce(context.Background(), header(protocol.APIKeyProduce, 5),
		decoderFor(encodeProduce(5, topic, partition, batch)))
	require.NoError(t, err)

	d := responseBody(resp)
	count, _ := d.ReadArrayLen(false)
	require.Equal(t, 1, count)
	d.ReadString() // topic
	parts, _ := d.ReadArrayLen(false)
	require.Equal(t, 1, parts)

	var p protocol.ProduceResponsePartition
	p.Index, _ = d.ReadInt32()
	p.ErrorCode, _ = d.ReadInt16()
	p.BaseOffset, _ = d.ReadInt64()
	p.LogAppendTimeMs, _ = d.ReadInt64()
	p.LogStartOffset, _ = d.ReadInt64()
	return p
}

func TestProduceAssignsIncreasingOffsets(t *testing.T) {
	g, _, _, _ := newTestGateway()

	first := produceOne(t, g, "orders", 0, makeBatch(10, 20, 30))
	require.Equal(t, protocol.ErrNone, first.ErrorCode)
	assert.Equal(t, int64(0), first.BaseOffset)

	second := produceOne(t, g, "orders", 0, makeBatch(5))
	require.Equal(t, protocol.ErrNone, second.ErrorCode)
	assert.Equal(t, int64(3), second.BaseOffset)
	assert.Equal(t, int64(-1), second.LogAppendTimeMs)
}

func TestProduceAutoCreatesTopic(t *testing.T) {
	g, admin, _, _ := newTestGateway()

	p := produceOne(t, g, "fresh", 0, makeBatch(8))
	require.Equal(t, protocol.ErrNone, p.ErrorCode)

	detail, err := admin.Describe(context.Background(), backendName(g, "fresh"))
	require.NoError(t, err)
	assert.Equal(t, g.cfg.Topics.DefaultPartitions, detail.Partitions)
}

func TestProduceRecordTooLarge(t *testing.T) {
	g, _, plog, _ := newTestGateway()
	g.cfg.Limits.MaxMessageSize = 1024

	p := produceOne(t, g, "orders", 0, makeBatch(100, 2048))
	assert.Equal(t, protocol.ErrRecordTooLarge, p.ErrorCode)
	assert.Equal(t, int64(-1), p.BaseOffset)
	assert.Empty(t, plog.batches)

	// The rejection is per request; the next produce goes through.
	p = produceOne(t, g, "orders", 0, makeBatch(100))
	assert.Equal(t, protocol.ErrNone, p.ErrorCode)
	assert.Equal(t, int64(0), p.BaseOffset)
}

func TestProducePartitionOutOfRange(t *testing.T) {
	g, _, _, _ := newTestGateway()

	p := produceOne(t, g, "orders", 99, makeBatch(8))
	assert.Equal(t, protocol.ErrUnknownTopicOrPartition, p.ErrorCode)
}

func TestProduceMalformedBatch(t *testing.T) {
	g, _, _, _ := newTestGateway()

	p := produceOne(t, g, "orders", 0, []byte{1, 2, 3})
	assert.Equal(t, protocol.ErrInvalidRequest, p.ErrorCode)
}

func encodeFetch(version int16, topic string, partition int32, offset int64) []byte {
	e := protocol.NewEncoder()
	e.WriteInt32(-1)      // replica id
	e.WriteInt32(500)     // max wait
	e.WriteInt32(1)       // min bytes
	if version >= 3 {
		e.WriteInt32(1 << 20)
	}
	if version >= 4 {
		e.WriteInt8(0) // isolation level
	}
	e.WriteArrayLen(1, false)
	e.WriteString(topic)
	e.WriteArrayLen(1, false)
	e.WriteInt32(partition)
	e.WriteInt64(offset)
	if version >= 5 {
		e.WriteInt64(0) // log start offset
	}
	e.WriteInt32(1 << 20) // partition max bytes
	return e.Bytes()
}

func fetchOne(t *testing.T, g *Gateway, topic string, partition int32, offset int64) protocol.FetchResponsePartition {
	t.Helper()
	resp, err := g.handleFetch(context.Background(), header(protocol.APIKeyFetch, 4),
		decoderFor(encodeFetch(4, topic, partition, offset)))
	require.NoError(t, err)

	d := responseBody(resp)
	d.ReadInt32() // throttle time
	count, _ := d.ReadArrayLen(false)
	require.Equal(t, 1, count)
	d.ReadString() // topic
	parts, _ := d.ReadArrayLen(false)
	require.Equal(t, 1, parts)

	var p protocol.FetchResponsePartition
	p.Index, _ = d.ReadInt32()
	p.ErrorCode, _ = d.ReadInt16()
	p.HighWatermark, _ = d.ReadInt64()
	p.LastStableOffset, _ = d.ReadInt64()
	d.ReadArrayLen(false) // aborted transactions
	p.Records, _ = d.ReadBytes()
	return p
}

func TestFetchPatchesBaseOffset(t *testing.T) {
	g, _, _, _ := newTestGateway()

	produceOne(t, g, "orders", 0, makeBatch(10, 10))
	produceOne(t, g, "orders", 0, makeBatch(10))

	p := fetchOne(t, g, "orders", 0, 0)
	require.Equal(t, protocol.ErrNone, p.ErrorCode)
	assert.Equal(t, int64(3), p.HighWatermark)

	// Two batches concatenated; each carries the offset the log assigned.
	first, err := protocol.InspectBatch(p.Records)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.BaseOffset)
	assert.Equal(t, int32(2), first.RecordCount)

	rest := p.Records[len(makeBatch(10, 10)):]
	second, err := protocol.InspectBatch(rest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.BaseOffset)
	assert.Equal(t, int32(1), second.RecordCount)
}

func TestFetchOffsetOutOfRange(t *testing.T) {
	g, _, _, _ := newTestGateway()
	produceOne(t, g, "orders", 0, makeBatch(10))

	p := fetchOne(t, g, "orders", 0, 5)
	assert.Equal(t, protocol.ErrOffsetOutOfRange, p.ErrorCode)
	assert.Equal(t, int64(1), p.HighWatermark)
	assert.Empty(t, p.Records)
}

func TestFetchUnknownTopicDoesNotCreate(t *testing.T) {
	g, admin, _, _ := newTestGateway()

	p := fetchOne(t, g, "nothere", 0, 0)
	assert.Equal(t, protocol.ErrUnknownTopicOrPartition, p.ErrorCode)

	names, _ := admin.List(context.Background())
	assert.Empty(t, names)
}

func TestFetchAtHighWatermarkReturnsEmpty(t *testing.T) {
	g, _, _, _ := newTestGateway()
	produceOne(t, g, "orders", 0, makeBatch(10, 10))

	p := fetchOne(t, g, "orders", 0, 2)
	assert.Equal(t, protocol.ErrNone, p.ErrorCode)
	assert.Equal(t, int64(2), p.HighWatermark)
	assert.Empty(t, p.Records)
}

func encodeListOffsets(version int16, topic string, partition int32, timestamp int64) []byte {
	e := protocol.NewEncoder()
	e.WriteInt32(-1) // replica id
	if version >= 2 {
		e.WriteInt8(0)
	}
	e.WriteArrayLen(1, false)
	e.WriteString(topic)
	e.WriteArrayLen(1, false)
	e.WriteInt32(partition)
	e.WriteInt64(timestamp)
	if version == 0 {
		e.WriteInt32(1) // max num offsets
	}
	return e.Bytes()
}

func TestListOffsets(t *testing.T) {
	g, admin, plog, _ := newTestGateway()
	require.NoError(t, admin.Create(context.Background(), backendName(g, "orders"), 1, nil))

	ref := refFor(mustResolve(g, "orders"), 0)
	_, err := plog.Append(context.Background(), ref, backend.Batch{Data: makeBatch(10, 10, 10), RecordCount: 3})
	require.NoError(t, err)

	listOne := func(timestamp int64) (int64, int16) {
		resp, err := g.handleListOffsets(context.Background(), header(protocol.APIKeyListOffsets, 1),
			decoderFor(encodeListOffsets(1, "orders", 0, timestamp)))
		require.NoError(t, err)

		d := responseBody(resp)
		d.ReadArrayLen(false)
		d.ReadString()
		d.ReadArrayLen(false)
		d.ReadInt32() // partition
		code, _ := d.ReadInt16()
		d.ReadInt64() // timestamp
		offset, _ := d.ReadInt64()
		return offset, code
	}

	offset, code := listOne(protocol.OffsetLatest)
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, int64(3), offset)

	offset, code = listOne(protocol.OffsetEarliest)
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, int64(0), offset)

	// Arbitrary timestamps are not indexed.
	offset, code = listOne(1_700_000_000_000)
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, int64(-1), offset)
}
