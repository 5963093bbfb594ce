package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/naming"
	"github.com/bpermana/kafgate/internal/protocol"
)

// handleOffsetCommit persists every position in the request. The commit
// timestamp is the arrival time; the expiry is that plus the retention
// window the request carried, or the configured default when it did not.
func (g *Gateway) handleOffsetCommit(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeOffsetCommitRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode offset commit request: %w", err)
	}

	now := time.Now()
	retention := g.effectiveRetention(req.RetentionTimeMs)
	expire := now.Add(retention)

	resp := &protocol.OffsetCommitResponse{}
	for _, t := range req.Topics {
		topicResp := protocol.OffsetCommitResponseTopic{Name: t.Name}

		id, resolveErr := g.resolve(t.Name)
		for _, p := range t.Partitions {
			code := protocol.ErrNone
			if resolveErr != nil {
				code = protocol.ErrInvalidTopic
			} else {
				rec := backend.OffsetRecord{
					Offset:          p.CommittedOffset,
					LeaderEpoch:     p.LeaderEpoch,
					CommitTimestamp: now.UnixMilli(),
					ExpireTimestamp: expire.UnixMilli(),
				}
				if p.Metadata != nil {
					rec.Metadata = *p.Metadata
				}
				if err := g.odsets.Put(ctx, req.GroupID, refFor(id, p.Index), rec); err != nil {
					code = protocol.ErrUnknownServerError
				}
			}

			topicResp.Partitions = append(topicResp.Partitions, protocol.OffsetCommitResponsePartition{
				Index:     p.Index,
				ErrorCode: code,
			})
		}

		resp.Topics = append(resp.Topics, topicResp)
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeOffsetCommitResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) handleOffsetFetch(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeOffsetFetchRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode offset fetch request: %w", err)
	}

	resp := &protocol.OffsetFetchResponse{}

	if req.Topics == nil {
		topics, err := g.fetchAllOffsets(ctx, req.GroupID)
		if err != nil {
			return nil, fmt.Errorf("fetch group offsets: %w", err)
		}
		resp.Topics = topics
	} else {
		for _, t := range req.Topics {
			resp.Topics = append(resp.Topics, g.fetchTopicOffsets(ctx, req.GroupID, t))
		}
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeOffsetFetchResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) fetchTopicOffsets(ctx context.Context, group string, t protocol.OffsetFetchRequestTopic) protocol.OffsetFetchResponseTopic {
	topicResp := protocol.OffsetFetchResponseTopic{Name: t.Name}

	id, resolveErr := g.resolve(t.Name)
	for _, partition := range t.Partitions {
		part := protocol.OffsetFetchResponsePartition{
			Index:           partition,
			CommittedOffset: -1,
			LeaderEpoch:     -1,
		}

		if resolveErr != nil {
			part.ErrorCode = protocol.ErrInvalidTopic
		} else if rec, ok, err := g.odsets.Get(ctx, group, refFor(id, partition)); err != nil {
			part.ErrorCode = protocol.ErrUnknownServerError
		} else if ok {
			part.CommittedOffset = rec.Offset
			part.LeaderEpoch = rec.LeaderEpoch
			if rec.Metadata != "" {
				part.Metadata = strPtr(rec.Metadata)
			}
		}

		topicResp.Partitions = append(topicResp.Partitions, part)
	}
	return topicResp
}

// fetchAllOffsets returns every committed position for the group,
// keyed by client-visible topic names.
func (g *Gateway) fetchAllOffsets(ctx context.Context, group string) ([]protocol.OffsetFetchResponseTopic, error) {
	all, err := g.odsets.Fetch(ctx, group)
	if err != nil {
		return nil, err
	}

	byTopic := make(map[string][]protocol.OffsetFetchResponsePartition)
	for ref, rec := range all {
		id, err := naming.Parse(ref.Topic, g.names)
		if err != nil {
			continue
		}

		part := protocol.OffsetFetchResponsePartition{
			Index:           ref.Partition,
			CommittedOffset: rec.Offset,
			LeaderEpoch:     rec.LeaderEpoch,
		}
		if rec.Metadata != "" {
			part.Metadata = strPtr(rec.Metadata)
		}
		byTopic[id.ClientName()] = append(byTopic[id.ClientName()], part)
	}

	topics := make([]protocol.OffsetFetchResponseTopic, 0, len(byTopic))
	for name, parts := range byTopic {
		topics = append(topics, protocol.OffsetFetchResponseTopic{Name: name, Partitions: parts})
	}
	return topics, nil
}
