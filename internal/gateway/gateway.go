// Package gateway translates client wire requests onto the backend
// topic, log and offset stores.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/config"
	"github.com/bpermana/kafgate/internal/naming"
	"github.com/bpermana/kafgate/internal/protocol"
)

// Gateway is the core translation layer shared by all connections.
type Gateway struct {
	cfg    *config.Config
	log    *zap.Logger
	names  naming.Defaults
	admin  backend.TopicAdmin
	plog   backend.PartitionLog
	odsets backend.OffsetStore

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg *config.Config, logger *zap.Logger, admin backend.TopicAdmin, plog backend.PartitionLog, offsets backend.OffsetStore) *Gateway {
	return &Gateway{
		cfg: cfg,
		log: logger,
		names: naming.Defaults{
			Tenant:    cfg.Namespace.Tenant,
			Namespace: cfg.Namespace.Namespace,
		},
		admin:    admin,
		plog:     plog,
		odsets:   offsets,
		stopChan: make(chan struct{}),
	}
}

// Start launches background tasks, currently the offset retention
// sweeper.
func (g *Gateway) Start() {
	g.wg.Add(1)
	go g.runSweeper()
}

func (g *Gateway) Stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
	g.wg.Wait()
}

// node is the address this gateway advertises for every partition it
// serves.
func (g *Gateway) node() backend.NodeAddress {
	return backend.NodeAddress{
		ID:   g.cfg.Server.BrokerID,
		Host: g.cfg.Server.AdvertisedHost,
		Port: g.cfg.Server.AdvertisedPort,
	}
}

// resolve maps a client topic name to its backend identity. The
// returned identity never carries a partition suffix; partitions are
// addressed through refFor.
func (g *Gateway) resolve(clientName string) (naming.Identity, error) {
	id, err := naming.Parse(clientName, g.names)
	if err != nil {
		return naming.Identity{}, err
	}
	id.Partition = naming.NoPartition
	return id, nil
}

func refFor(id naming.Identity, partition int32) backend.Ref {
	return backend.Ref{Topic: id.BackendName(), Partition: partition}
}

// describeTopic resolves a client name and looks the topic up,
// auto-creating it when the request and config both allow that.
func (g *Gateway) describeTopic(ctx context.Context, clientName string, allowAutoCreate bool) (naming.Identity, backend.TopicDetail, error) {
	id, err := g.resolve(clientName)
	if err != nil {
		return naming.Identity{}, backend.TopicDetail{}, backend.ErrInvalidTopicName
	}

	detail, err := g.admin.Describe(ctx, id.BackendName())
	if errors.Is(err, backend.ErrTopicNotFound) && allowAutoCreate && g.cfg.Topics.AutoCreate {
		createErr := g.admin.Create(ctx, id.BackendName(), g.cfg.Topics.DefaultPartitions, nil)
		if createErr != nil && !errors.Is(createErr, backend.ErrTopicExists) {
			return id, backend.TopicDetail{}, createErr
		}
		g.log.Info("auto-created topic", zap.String("topic", id.ClientName()))
		detail, err = g.admin.Describe(ctx, id.BackendName())
	}
	if err != nil {
		return id, backend.TopicDetail{}, err
	}
	return id, detail, nil
}

// errorCodeFor maps backend errors onto wire error codes.
func errorCodeFor(err error) int16 {
	switch {
	case err == nil:
		return protocol.ErrNone
	case errors.Is(err, backend.ErrTopicNotFound):
		return protocol.ErrUnknownTopicOrPartition
	case errors.Is(err, backend.ErrTopicExists):
		return protocol.ErrTopicAlreadyExists
	case errors.Is(err, backend.ErrInvalidTopicName):
		return protocol.ErrInvalidTopic
	case errors.Is(err, backend.ErrNamespaceRejected):
		// Policy rejections below the topic layer are not a naming
		// problem the client can correct.
		return protocol.ErrUnknownServerError
	case errors.Is(err, backend.ErrOffsetOutOfRange):
		return protocol.ErrOffsetOutOfRange
	default:
		return protocol.ErrUnknownServerError
	}
}

// effectiveRetention computes the retention window for a commit: the
// request value when the request version carried one and set it,
// otherwise the configured default.
func (g *Gateway) effectiveRetention(requested int64) time.Duration {
	if requested != protocol.RetentionNotSet {
		return time.Duration(requested) * time.Millisecond
	}
	return g.cfg.Offsets.RetentionTime
}
