package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpermana/kafgate/internal/protocol"
)

func encodeMetadata(version int16, topics []string, allowAutoCreate bool) []byte {
	e := protocol.NewEncoder()
	if topics == nil {
		e.WriteArrayLen(-1, false)
	} else {
		e.WriteArrayLen(len(topics), false)
		for _, t := range topics {
			e.WriteString(t)
		}
	}
	if version >= 4 {
		e.WriteBool(allowAutoCreate)
	}
	return e.Bytes()
}

func decodeMetadataResponse(t *testing.T, resp []byte, version int16) *protocol.MetadataResponse {
	t.Helper()
	d := responseBody(resp)
	out := &protocol.MetadataResponse{}

	if version >= 3 {
		out.ThrottleTimeMs, _ = d.ReadInt32()
	}
	brokers, _ := d.ReadArrayLen(false)
	for i := 0; i < brokers; i++ {
		var b protocol.MetadataBroker
		b.NodeID, _ = d.ReadInt32()
		b.Host, _ = d.ReadString()
		b.Port, _ = d.ReadInt32()
		if version >= 1 {
			b.Rack, _ = d.ReadNullableString()
		}
		out.Brokers = append(out.Brokers, b)
	}
	if version >= 2 {
		out.ClusterID, _ = d.ReadNullableString()
	}
	if version >= 1 {
		out.ControllerID, _ = d.ReadInt32()
	}
	topics, _ := d.ReadArrayLen(false)
	for i := 0; i < topics; i++ {
		var topic protocol.MetadataTopic
		topic.ErrorCode, _ = d.ReadInt16()
		topic.Name, _ = d.ReadString()
		if version >= 1 {
			topic.IsInternal, _ = d.ReadBool()
		}
		parts, _ := d.ReadArrayLen(false)
		for j := 0; j < parts; j++ {
			var p protocol.MetadataPartition
			p.ErrorCode, _ = d.ReadInt16()
			p.PartitionIndex, _ = d.ReadInt32()
			p.LeaderID, _ = d.ReadInt32()
			p.ReplicaNodes = readInt32Array(d)
			p.IsrNodes = readInt32Array(d)
			if version >= 5 {
				p.OfflineReplicas = readInt32Array(d)
			}
			topic.Partitions = append(topic.Partitions, p)
		}
		out.Topics = append(out.Topics, topic)
	}
	return out
}

func readInt32Array(d *protocol.Decoder) []int32 {
	count, _ := d.ReadArrayLen(false)
	out := make([]int32, 0, max(count, 0))
	for i := 0; i < count; i++ {
		v, _ := d.ReadInt32()
		out = append(out, v)
	}
	return out
}

func metadataFor(t *testing.T, g *Gateway, version int16, topics []string, allowAutoCreate bool) *protocol.MetadataResponse {
	t.Helper()
	resp, err := g.handleMetadata(context.Background(), header(protocol.APIKeyMetadata, version),
		decoderFor(encodeMetadata(version, topics, allowAutoCreate)))
	require.NoError(t, err)
	return decodeMetadataResponse(t, resp, version)
}

func TestMetadataListsKnownTopics(t *testing.T) {
	g, admin, _, _ := newTestGateway()
	require.NoError(t, admin.Create(context.Background(), backendName(g, "orders"), 3, nil))
	// A backend entry the gateway cannot translate is never exposed.
	require.NoError(t, admin.Create(context.Background(), "stray/entry", 1, nil))

	resp := metadataFor(t, g, 5, nil, false)

	require.Len(t, resp.Brokers, 1)
	assert.Equal(t, int32(1), resp.Brokers[0].NodeID)
	assert.Equal(t, "kafgate", *resp.ClusterID)

	require.Len(t, resp.Topics, 1)
	topic := resp.Topics[0]
	assert.Equal(t, "orders", topic.Name)
	assert.Equal(t, protocol.ErrNone, topic.ErrorCode)
	assert.Len(t, topic.Partitions, 3)
	for i, p := range topic.Partitions {
		assert.Equal(t, int32(i), p.PartitionIndex)
		assert.Equal(t, int32(1), p.LeaderID)
		assert.Equal(t, []int32{1}, p.ReplicaNodes)
		assert.Equal(t, []int32{1}, p.IsrNodes)
	}
}

// From v1 on, an empty topics array asks for no topics at all; only a
// null array (and any v0 request without names) lists everything.
func TestMetadataEmptyTopicsArray(t *testing.T) {
	g, admin, _, _ := newTestGateway()
	require.NoError(t, admin.Create(context.Background(), backendName(g, "orders"), 1, nil))

	resp := metadataFor(t, g, 5, []string{}, false)
	assert.Empty(t, resp.Topics)

	resp = metadataFor(t, g, 0, []string{}, false)
	require.Len(t, resp.Topics, 1)
	assert.Equal(t, "orders", resp.Topics[0].Name)
}

func TestMetadataAutoCreate(t *testing.T) {
	g, admin, _, _ := newTestGateway()

	resp := metadataFor(t, g, 5, []string{"fresh"}, true)

	require.Len(t, resp.Topics, 1)
	assert.Equal(t, protocol.ErrNone, resp.Topics[0].ErrorCode)

	_, err := admin.Describe(context.Background(), backendName(g, "fresh"))
	assert.NoError(t, err)
}

func TestMetadataUnknownTopicNoAutoCreate(t *testing.T) {
	g, admin, _, _ := newTestGateway()

	resp := metadataFor(t, g, 5, []string{"ghost"}, false)

	require.Len(t, resp.Topics, 1)
	assert.Equal(t, protocol.ErrUnknownTopicOrPartition, resp.Topics[0].ErrorCode)

	names, _ := admin.List(context.Background())
	assert.Empty(t, names)
}

// A partition whose owner cannot be resolved is still listed, flagged
// as NOT_LEADER rather than dropped from the response.
func TestMetadataUnresolvedLeader(t *testing.T) {
	g, admin, plog, _ := newTestGateway()
	require.NoError(t, admin.Create(context.Background(), backendName(g, "orders"), 4, nil))
	plog.leaderOK = false

	resp := metadataFor(t, g, 5, []string{"orders"}, false)

	require.Len(t, resp.Topics, 1)
	topic := resp.Topics[0]
	assert.Equal(t, protocol.ErrNone, topic.ErrorCode)
	require.Len(t, topic.Partitions, 4)
	for _, p := range topic.Partitions {
		assert.Equal(t, protocol.ErrNotLeaderForPartition, p.ErrorCode)
		assert.Equal(t, int32(-1), p.LeaderID)
		assert.Empty(t, p.ReplicaNodes)
		assert.Empty(t, p.IsrNodes)
	}
}
