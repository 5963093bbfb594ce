package gateway

import (
	"context"
	"fmt"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/metrics"
	"github.com/bpermana/kafgate/internal/naming"
	"github.com/bpermana/kafgate/internal/protocol"
)

func (g *Gateway) handleProduce(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeProduceRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode produce request: %w", err)
	}

	resp := &protocol.ProduceResponse{}
	for _, t := range req.Topics {
		topicResp := protocol.ProduceResponseTopic{Name: t.Name}

		id, detail, topicErr := g.describeTopic(ctx, t.Name, true)
		for _, p := range t.Partitions {
			topicResp.Partitions = append(topicResp.Partitions,
				g.produceOnePartition(ctx, id, detail, topicErr, p))
		}

		resp.Topics = append(resp.Topics, topicResp)
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeProduceResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) produceOnePartition(ctx context.Context, id naming.Identity, detail backend.TopicDetail, topicErr error, p protocol.ProduceRequestPartition) protocol.ProduceResponsePartition {
	result := protocol.ProduceResponsePartition{
		Index:           p.Index,
		BaseOffset:      -1,
		LogAppendTimeMs: -1,
	}

	if topicErr != nil {
		result.ErrorCode = errorCodeFor(topicErr)
		return result
	}
	if p.Index < 0 || p.Index >= detail.Partitions {
		result.ErrorCode = protocol.ErrUnknownTopicOrPartition
		return result
	}

	info, err := protocol.InspectBatch(p.Records)
	if err != nil {
		result.ErrorCode = protocol.ErrInvalidRequest
		return result
	}
	// The ceiling applies to the largest single record for uncompressed
	// batches and to the whole batch for compressed ones.
	if info.MaxRecordSize > g.cfg.Limits.MaxMessageSize {
		result.ErrorCode = protocol.ErrRecordTooLarge
		return result
	}

	ref := refFor(id, p.Index)
	base, err := g.plog.Append(ctx, ref, backend.Batch{
		Data:        p.Records,
		RecordCount: info.RecordCount,
	})
	if err != nil {
		result.ErrorCode = errorCodeFor(err)
		return result
	}

	earliest, err := g.plog.EarliestOffset(ctx, ref)
	if err != nil {
		earliest = 0
	}

	metrics.BatchesAppended.Inc()
	result.BaseOffset = base
	result.LogStartOffset = earliest
	return result
}

func (g *Gateway) handleFetch(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeFetchRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode fetch request: %w", err)
	}

	maxBytes := req.MaxBytes
	if maxBytes <= 0 || maxBytes > int32(g.cfg.Limits.MaxFetchBytes) {
		maxBytes = int32(g.cfg.Limits.MaxFetchBytes)
	}

	resp := &protocol.FetchResponse{ErrorCode: protocol.ErrNone}
	for _, t := range req.Topics {
		topicResp := protocol.FetchResponseTopic{Name: t.Name}

		id, detail, topicErr := g.describeTopic(ctx, t.Name, false)
		for _, p := range t.Partitions {
			topicResp.Partitions = append(topicResp.Partitions,
				g.fetchOnePartition(ctx, id, detail, topicErr, p, maxBytes))
		}

		resp.Topics = append(resp.Topics, topicResp)
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeFetchResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) fetchOnePartition(ctx context.Context, id naming.Identity, detail backend.TopicDetail, topicErr error, p protocol.FetchRequestPartition, maxBytes int32) protocol.FetchResponsePartition {
	result := protocol.FetchResponsePartition{
		Index:                p.Index,
		PreferredReadReplica: -1,
	}

	if topicErr != nil {
		result.ErrorCode = errorCodeFor(topicErr)
		return result
	}
	if p.Index < 0 || p.Index >= detail.Partitions {
		result.ErrorCode = protocol.ErrUnknownTopicOrPartition
		return result
	}

	ref := refFor(id, p.Index)
	hwm, err := g.plog.LatestOffset(ctx, ref)
	if err != nil {
		result.ErrorCode = protocol.ErrUnknownServerError
		return result
	}
	earliest, err := g.plog.EarliestOffset(ctx, ref)
	if err != nil {
		result.ErrorCode = protocol.ErrUnknownServerError
		return result
	}

	result.HighWatermark = hwm
	result.LastStableOffset = hwm
	result.LogStartOffset = earliest

	if p.FetchOffset > hwm || p.FetchOffset < earliest {
		result.ErrorCode = protocol.ErrOffsetOutOfRange
		return result
	}

	partMax := p.MaxBytes
	if partMax <= 0 || partMax > maxBytes {
		partMax = maxBytes
	}

	batches, err := g.plog.Read(ctx, ref, p.FetchOffset, partMax)
	if err != nil {
		result.ErrorCode = protocol.ErrUnknownServerError
		return result
	}

	var records []byte
	for _, b := range batches {
		data := make([]byte, len(b.Data))
		copy(data, b.Data)
		// Stored batches keep the client's base offset of 0; stamp in
		// the offset the log assigned.
		protocol.PatchBaseOffset(data, b.BaseOffset)
		records = append(records, data...)
	}

	metrics.BytesFetched.Add(float64(len(records)))
	result.Records = records
	return result
}

func (g *Gateway) handleListOffsets(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeListOffsetsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode list offsets request: %w", err)
	}

	resp := &protocol.ListOffsetsResponse{}
	for _, t := range req.Topics {
		topicResp := protocol.ListOffsetsResponseTopic{Name: t.Name}

		id, detail, topicErr := g.describeTopic(ctx, t.Name, false)
		for _, p := range t.Partitions {
			topicResp.Partitions = append(topicResp.Partitions,
				g.listOnePartitionOffset(ctx, id, detail, topicErr, p))
		}

		resp.Topics = append(resp.Topics, topicResp)
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeListOffsetsResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) listOnePartitionOffset(ctx context.Context, id naming.Identity, detail backend.TopicDetail, topicErr error, p protocol.ListOffsetsRequestPartition) protocol.ListOffsetsResponsePartition {
	result := protocol.ListOffsetsResponsePartition{
		PartitionIndex: p.PartitionIndex,
		LeaderEpoch:    -1,
	}

	if topicErr != nil {
		result.ErrorCode = errorCodeFor(topicErr)
		return result
	}
	if p.PartitionIndex < 0 || p.PartitionIndex >= detail.Partitions {
		result.ErrorCode = protocol.ErrUnknownTopicOrPartition
		return result
	}

	ref := refFor(id, p.PartitionIndex)

	var offset int64
	var err error
	switch p.Timestamp {
	case protocol.OffsetLatest:
		offset, err = g.plog.LatestOffset(ctx, ref)
	case protocol.OffsetEarliest:
		offset, err = g.plog.EarliestOffset(ctx, ref)
	default:
		// Timestamp lookup is not indexed; report no matching offset.
		offset = -1
	}
	if err != nil {
		result.ErrorCode = protocol.ErrUnknownServerError
		return result
	}

	result.Timestamp = p.Timestamp
	result.Offset = offset
	result.OldStyleOffsets = []int64{offset}
	return result
}
