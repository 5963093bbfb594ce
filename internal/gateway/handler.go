package gateway

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/metrics"
	"github.com/bpermana/kafgate/internal/protocol"
)

// Handle decodes one request frame and returns the encoded response
// body (header included, size prefix excluded). A nil return means the
// frame was unreadable and the connection should drop.
func (g *Gateway) Handle(ctx context.Context, frame []byte) []byte {
	dec := protocol.NewDecoder(bytes.NewReader(frame))

	header, err := dec.ReadHeader()
	if err != nil {
		g.log.Warn("unreadable request frame", zap.Error(err))
		return nil
	}

	apiName := protocol.APIName(header.APIKey)
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(apiName).Observe(time.Since(start).Seconds())
	}()

	if err := protocol.CheckVersion(header.APIKey, header.APIVersion); err != nil {
		g.log.Debug("rejected request version",
			zap.String("api", apiName),
			zap.Int16("version", header.APIVersion),
			zap.String("client", header.ClientID))
		metrics.RequestsTotal.WithLabelValues(apiName, "unsupported_version").Inc()
		return g.unsupportedVersionResponse(header)
	}

	g.log.Debug("request",
		zap.String("api", apiName),
		zap.Int16("version", header.APIVersion),
		zap.Int32("correlation", header.CorrelationID),
		zap.String("client", header.ClientID))

	var resp []byte
	var handlerErr error

	switch header.APIKey {
	case protocol.APIKeyApiVersions:
		resp, handlerErr = g.handleApiVersions(ctx, header, dec)
	case protocol.APIKeyMetadata:
		resp, handlerErr = g.handleMetadata(ctx, header, dec)
	case protocol.APIKeyCreateTopics:
		resp, handlerErr = g.handleCreateTopics(ctx, header, dec)
	case protocol.APIKeyDeleteTopics:
		resp, handlerErr = g.handleDeleteTopics(ctx, header, dec)
	case protocol.APIKeyCreatePartitions:
		resp, handlerErr = g.handleCreatePartitions(ctx, header, dec)
	case protocol.APIKeyDescribeConfigs:
		resp, handlerErr = g.handleDescribeConfigs(ctx, header, dec)
	case protocol.APIKeyAlterConfigs:
		resp, handlerErr = g.handleAlterConfigs(ctx, header, dec)
	case protocol.APIKeyProduce:
		resp, handlerErr = g.handleProduce(ctx, header, dec)
	case protocol.APIKeyFetch:
		resp, handlerErr = g.handleFetch(ctx, header, dec)
	case protocol.APIKeyListOffsets:
		resp, handlerErr = g.handleListOffsets(ctx, header, dec)
	case protocol.APIKeyOffsetCommit:
		resp, handlerErr = g.handleOffsetCommit(ctx, header, dec)
	case protocol.APIKeyOffsetFetch:
		resp, handlerErr = g.handleOffsetFetch(ctx, header, dec)
	default:
		metrics.RequestsTotal.WithLabelValues(apiName, "unsupported_version").Inc()
		return g.unsupportedVersionResponse(header)
	}

	if handlerErr != nil {
		g.log.Error("handler failed",
			zap.String("api", apiName),
			zap.Error(handlerErr))
		metrics.RequestsTotal.WithLabelValues(apiName, "error").Inc()
		return g.errorResponse(header, protocol.ErrUnknownServerError)
	}

	metrics.RequestsTotal.WithLabelValues(apiName, "ok").Inc()
	return resp
}

// respond writes the response header in the encoding the request
// version calls for and lets encode fill in the body.
func (g *Gateway) respond(h protocol.RequestHeader, encode func(*protocol.Encoder)) []byte {
	e := protocol.NewEncoder()
	// ApiVersions responses keep the classic header at every version so
	// clients can parse the reply before version negotiation completes.
	if protocol.IsFlexible(h.APIKey, h.APIVersion) && h.APIKey != protocol.APIKeyApiVersions {
		e.WriteResponseHeaderFlexible(h.CorrelationID)
	} else {
		e.WriteResponseHeader(h.CorrelationID)
	}
	encode(e)
	return e.Bytes()
}

func (g *Gateway) errorResponse(h protocol.RequestHeader, code int16) []byte {
	e := protocol.NewEncoder()
	e.WriteResponseHeader(h.CorrelationID)
	e.WriteInt16(code)
	return e.Bytes()
}

// unsupportedVersionResponse tells the client which versions would
// have been accepted. ApiVersions gets a v0-encoded listing, because
// that is the one shape every client can decode; other APIs get a bare
// error code.
func (g *Gateway) unsupportedVersionResponse(h protocol.RequestHeader) []byte {
	if h.APIKey != protocol.APIKeyApiVersions {
		return g.errorResponse(h, protocol.ErrUnsupportedVersion)
	}

	e := protocol.NewEncoder()
	e.WriteResponseHeader(h.CorrelationID)
	protocol.EncodeApiVersionsResponse(e, 0, &protocol.ApiVersionsResponse{
		ErrorCode:   protocol.ErrUnsupportedVersion,
		ApiVersions: protocol.SupportedVersions(),
	})
	return e.Bytes()
}

func (g *Gateway) handleApiVersions(ctx context.Context, h protocol.RequestHeader, d *protocol.Decoder) ([]byte, error) {
	if _, err := protocol.DecodeApiVersionsRequest(d, h.APIVersion); err != nil {
		return nil, fmt.Errorf("decode api versions request: %w", err)
	}

	resp := &protocol.ApiVersionsResponse{
		ErrorCode:   protocol.ErrNone,
		ApiVersions: protocol.SupportedVersions(),
	}

	return g.respond(h, func(e *protocol.Encoder) {
		protocol.EncodeApiVersionsResponse(e, h.APIVersion, resp)
	}), nil
}
