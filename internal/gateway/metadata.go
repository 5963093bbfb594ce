package gateway

import (
	"context"
	"fmt"

	"github.com/bpermana/kafgate/internal/naming"
	"github.com/bpermana/kafgate/internal/protocol"
)

func (g *Gateway) handleMetadata(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeMetadataRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode metadata request: %w", err)
	}

	node := g.node()
	resp := &protocol.MetadataResponse{
		Brokers: []protocol.MetadataBroker{
			{NodeID: node.ID, Host: node.Host, Port: node.Port},
		},
		ClusterID:         strPtr("kafgate"),
		ControllerID:      node.ID,
		IncludeClusterOps: req.IncludeClusterAuthorizedOperations,
		IncludeTopicOps:   req.IncludeTopicAuthorizedOperations,
	}

	topicNames := req.Topics
	if topicNames == nil {
		topicNames, err = g.listClientTopics(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
	}

	for _, name := range topicNames {
		resp.Topics = append(resp.Topics, g.topicMetadata(ctx, name, req.AllowAutoTopicCreation))
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeMetadataResponse(e, h.APIVersion, resp)
	}), nil
}

// listClientTopics maps the backend topic listing to the names clients
// know; entries the gateway cannot translate are dropped rather than
// leaked in backend form.
func (g *Gateway) listClientTopics(ctx context.Context) ([]string, error) {
	backendNames, err := g.admin.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(backendNames))
	for _, bn := range backendNames {
		id, err := naming.Parse(bn, g.names)
		if err != nil {
			continue
		}
		names = append(names, id.ClientName())
	}
	return names, nil
}

// topicMetadata builds one topic entry. The partition list always
// matches the authoritative count; a partition whose owner cannot be
// resolved is reported as NOT_LEADER, never omitted.
func (g *Gateway) topicMetadata(ctx context.Context, name string, allowAutoCreate bool) protocol.MetadataTopic {
	topic := protocol.MetadataTopic{Name: name}

	id, detail, err := g.describeTopic(ctx, name, allowAutoCreate)
	if err != nil {
		topic.ErrorCode = errorCodeFor(err)
		return topic
	}

	topic.Partitions = make([]protocol.MetadataPartition, detail.Partitions)
	for p := int32(0); p < detail.Partitions; p++ {
		part := protocol.MetadataPartition{
			PartitionIndex:  p,
			OfflineReplicas: []int32{},
		}

		if node, ok := g.plog.LeaderOf(refFor(id, p)); ok {
			part.LeaderID = node.ID
			part.ReplicaNodes = []int32{node.ID}
			part.IsrNodes = []int32{node.ID}
		} else {
			part.ErrorCode = protocol.ErrNotLeaderForPartition
			part.LeaderID = -1
			part.ReplicaNodes = []int32{}
			part.IsrNodes = []int32{}
		}

		topic.Partitions[p] = part
	}
	return topic
}
