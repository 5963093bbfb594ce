package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/protocol"
)

// Broker-level config keys surfaced through DescribeConfigs.
const (
	configNumPartitions     = "num.partitions"
	configReplicationFactor = "default.replication.factor"
	configDeleteTopicEnable = "delete.topic.enable"
)

func strPtr(s string) *string { return &s }

// handleCreateTopics fans the batch out, one goroutine per topic. A
// failure on one topic never touches the others' results.
func (g *Gateway) handleCreateTopics(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeCreateTopicsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode create topics request: %w", err)
	}

	results := make([]protocol.CreateTopicsResponseTopic, len(req.Topics))

	var wg sync.WaitGroup
	for i, t := range req.Topics {
		wg.Add(1)
		go func(i int, t protocol.CreateTopicsRequestTopic) {
			defer wg.Done()
			results[i] = g.createOneTopic(ctx, t, req.ValidateOnly)
		}(i, t)
	}
	wg.Wait()

	resp := &protocol.CreateTopicsResponse{Topics: results}
	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeCreateTopicsResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) createOneTopic(ctx context.Context, t protocol.CreateTopicsRequestTopic, validateOnly bool) protocol.CreateTopicsResponseTopic {
	result := protocol.CreateTopicsResponseTopic{
		Name:              t.Name,
		NumPartitions:     t.NumPartitions,
		ReplicationFactor: t.ReplicationFactor,
	}

	partitions := t.NumPartitions
	if partitions == protocol.NoNumPartitions {
		partitions = g.cfg.Topics.DefaultPartitions
		result.NumPartitions = partitions
	}
	if partitions <= 0 {
		result.ErrorCode = protocol.ErrInvalidPartitions
		result.ErrorMessage = strPtr(fmt.Sprintf("Number of partitions must be larger than 0. Got: %d", partitions))
		return result
	}

	if t.ReplicationFactor == -1 {
		result.ReplicationFactor = g.cfg.Topics.DefaultReplicationFactor
	} else if t.ReplicationFactor <= 0 {
		result.ErrorCode = protocol.ErrInvalidReplicationFactor
		result.ErrorMessage = strPtr(fmt.Sprintf("Replication factor must be larger than 0. Got: %d", t.ReplicationFactor))
		return result
	}

	id, err := g.resolve(t.Name)
	if err != nil {
		result.ErrorCode = protocol.ErrInvalidTopic
		result.ErrorMessage = strPtr(err.Error())
		return result
	}

	if validateOnly {
		if _, err := g.admin.Describe(ctx, id.BackendName()); err == nil {
			result.ErrorCode = protocol.ErrTopicAlreadyExists
			result.ErrorMessage = strPtr(fmt.Sprintf("Topic '%s' already exists.", t.Name))
		}
		return result
	}

	if err := g.admin.Create(ctx, id.BackendName(), partitions, t.Configs); err != nil {
		result.ErrorCode = errorCodeFor(err)
		result.ErrorMessage = strPtr(err.Error())
		if errors.Is(err, backend.ErrTopicExists) {
			result.ErrorMessage = strPtr(fmt.Sprintf("Topic '%s' already exists.", t.Name))
		}
		return result
	}

	g.log.Info("created topic",
		zap.String("topic", t.Name),
		zap.Int32("partitions", partitions))
	return result
}

// handleDeleteTopics removes each topic, reclaims its partitions and
// then clears the pending-delete marker the admin store left behind.
func (g *Gateway) handleDeleteTopics(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeDeleteTopicsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode delete topics request: %w", err)
	}

	results := make([]protocol.DeleteTopicsResponseTopic, len(req.TopicNames))

	var wg sync.WaitGroup
	for i, name := range req.TopicNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = protocol.DeleteTopicsResponseTopic{
				Name:      name,
				ErrorCode: g.deleteOneTopic(ctx, name),
			}
		}(i, name)
	}
	wg.Wait()

	resp := &protocol.DeleteTopicsResponse{Responses: results}
	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeDeleteTopicsResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) deleteOneTopic(ctx context.Context, name string) int16 {
	if !g.cfg.Topics.DeleteEnable {
		return protocol.ErrInvalidRequest
	}

	id, err := g.resolve(name)
	if err != nil {
		return protocol.ErrInvalidTopic
	}

	detail, err := g.admin.Describe(ctx, id.BackendName())
	if err != nil {
		return errorCodeFor(err)
	}

	if err := g.admin.Delete(ctx, id.BackendName()); err != nil {
		return errorCodeFor(err)
	}

	for p := int32(0); p < detail.Partitions; p++ {
		if err := g.plog.Purge(ctx, refFor(id, p)); err != nil {
			// The pending-delete marker stays until a later delete or
			// restart reclaims the partition.
			g.log.Warn("partition purge failed",
				zap.String("topic", name),
				zap.Int32("partition", p),
				zap.Error(err))
			return protocol.ErrNone
		}
	}

	if err := g.admin.ClearPendingDelete(ctx, id.BackendName()); err != nil {
		g.log.Warn("clearing pending delete failed", zap.String("topic", name), zap.Error(err))
	}

	g.log.Info("deleted topic", zap.String("topic", name))
	return protocol.ErrNone
}

func (g *Gateway) handleCreatePartitions(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeCreatePartitionsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode create partitions request: %w", err)
	}

	results := make([]protocol.CreatePartitionsResult, len(req.Topics))

	var wg sync.WaitGroup
	for i, t := range req.Topics {
		wg.Add(1)
		go func(i int, t protocol.CreatePartitionsRequestTopic) {
			defer wg.Done()
			results[i] = g.growOneTopic(ctx, t, req.ValidateOnly)
		}(i, t)
	}
	wg.Wait()

	resp := &protocol.CreatePartitionsResponse{Results: results}
	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeCreatePartitionsResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) growOneTopic(ctx context.Context, t protocol.CreatePartitionsRequestTopic, validateOnly bool) protocol.CreatePartitionsResult {
	result := protocol.CreatePartitionsResult{Name: t.Name}

	if t.Assignments != nil {
		result.ErrorCode = protocol.ErrInvalidRequest
		result.ErrorMessage = strPtr("Manual partition assignment is not supported")
		return result
	}

	if t.Count < 0 {
		result.ErrorCode = protocol.ErrInvalidPartitions
		result.ErrorMessage = strPtr(fmt.Sprintf("The partition '%d' is negative", t.Count))
		return result
	}

	id, err := g.resolve(t.Name)
	if err != nil {
		result.ErrorCode = protocol.ErrInvalidTopic
		result.ErrorMessage = strPtr(err.Error())
		return result
	}

	detail, err := g.admin.Describe(ctx, id.BackendName())
	if err != nil {
		result.ErrorCode = errorCodeFor(err)
		if errors.Is(err, backend.ErrTopicNotFound) {
			result.ErrorMessage = strPtr(fmt.Sprintf("Topic '%s' doesn't exist.", t.Name))
		} else {
			result.ErrorMessage = strPtr(err.Error())
		}
		return result
	}

	if t.Count <= detail.Partitions {
		result.ErrorCode = protocol.ErrInvalidPartitions
		result.ErrorMessage = strPtr(fmt.Sprintf(
			"Topic currently has '%d' partitions, which is higher than the requested '%d'.",
			detail.Partitions, t.Count))
		return result
	}

	if validateOnly {
		return result
	}

	if err := g.admin.AddPartitions(ctx, id.BackendName(), t.Count); err != nil {
		result.ErrorCode = errorCodeFor(err)
		result.ErrorMessage = strPtr(err.Error())
		return result
	}

	g.log.Info("grew topic",
		zap.String("topic", t.Name),
		zap.Int32("partitions", t.Count))
	return result
}

func (g *Gateway) handleDescribeConfigs(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeDescribeConfigsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode describe configs request: %w", err)
	}

	results := make([]protocol.DescribeConfigsResult, len(req.Resources))

	var wg sync.WaitGroup
	for i, res := range req.Resources {
		wg.Add(1)
		go func(i int, res protocol.DescribeConfigsRequestResource) {
			defer wg.Done()
			results[i] = g.describeOneResource(ctx, res)
		}(i, res)
	}
	wg.Wait()

	resp := &protocol.DescribeConfigsResponse{Results: results}
	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeDescribeConfigsResponse(e, h.APIVersion, resp)
	}), nil
}

func (g *Gateway) describeOneResource(ctx context.Context, res protocol.DescribeConfigsRequestResource) protocol.DescribeConfigsResult {
	result := protocol.DescribeConfigsResult{
		ResourceType: res.ResourceType,
		ResourceName: res.ResourceName,
	}

	switch res.ResourceType {
	case protocol.ResourceBroker:
		result.Configs = filterConfigEntries(g.brokerConfigEntries(), res.ConfigNames)
	case protocol.ResourceTopic:
		entries, err := g.topicConfigEntries(ctx, res.ResourceName)
		if err != nil {
			result.ErrorCode = errorCodeFor(err)
			result.ErrorMessage = strPtr(err.Error())
			return result
		}
		result.Configs = filterConfigEntries(entries, res.ConfigNames)
	default:
		result.ErrorCode = protocol.ErrInvalidRequest
		result.ErrorMessage = strPtr(fmt.Sprintf("Unsupported resource type: %d", res.ResourceType))
	}
	return result
}

func (g *Gateway) brokerConfigEntries() []protocol.DescribeConfigsEntry {
	return []protocol.DescribeConfigsEntry{
		{
			Name:      configNumPartitions,
			Value:     strPtr(strconv.Itoa(int(g.cfg.Topics.DefaultPartitions))),
			IsDefault: true,
			Source:    protocol.ConfigSourceStaticBrokerDefault,
		},
		{
			Name:      configReplicationFactor,
			Value:     strPtr(strconv.Itoa(int(g.cfg.Topics.DefaultReplicationFactor))),
			IsDefault: true,
			Source:    protocol.ConfigSourceStaticBrokerDefault,
		},
		{
			Name:      configDeleteTopicEnable,
			Value:     strPtr(strconv.FormatBool(g.cfg.Topics.DeleteEnable)),
			IsDefault: true,
			Source:    protocol.ConfigSourceStaticBrokerDefault,
		},
	}
}

func (g *Gateway) topicConfigEntries(ctx context.Context, name string) ([]protocol.DescribeConfigsEntry, error) {
	id, err := g.resolve(name)
	if err != nil {
		return nil, backend.ErrInvalidTopicName
	}

	overrides, err := g.admin.Configs(ctx, id.BackendName())
	if err != nil {
		return nil, err
	}

	entries := make([]protocol.DescribeConfigsEntry, 0, len(overrides))
	for k, v := range overrides {
		entries = append(entries, protocol.DescribeConfigsEntry{
			Name:   k,
			Value:  strPtr(v),
			Source: protocol.ConfigSourceTopic,
		})
	}
	return entries, nil
}

func filterConfigEntries(entries []protocol.DescribeConfigsEntry, names []string) []protocol.DescribeConfigsEntry {
	if names == nil {
		return entries
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]protocol.DescribeConfigsEntry, 0, len(names))
	for _, e := range entries {
		if wanted[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

// handleAlterConfigs accepts every alteration without applying it.
// Clients that alter configs as part of setup keep working; the
// gateway's own config stays authoritative.
func (g *Gateway) handleAlterConfigs(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	req, err := protocol.DecodeAlterConfigsRequest(d, h.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("decode alter configs request: %w", err)
	}

	resp := &protocol.AlterConfigsResponse{}
	for _, res := range req.Resources {
		resp.Responses = append(resp.Responses, protocol.AlterConfigsResult{
			ErrorCode:    protocol.ErrNone,
			ResourceType: res.ResourceType,
			ResourceName: res.ResourceName,
		})
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeAlterConfigsResponse(e, h.APIVersion, resp)
	}), nil
}
