package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/metrics"
)

// runSweeper periodically removes committed offsets whose retention
// window has lapsed. A failed sweep is logged and retried on the next
// tick; nothing is lost, expired entries just linger a little longer.
func (g *Gateway) runSweeper() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.Offsets.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweepOnce(time.Now())
		case <-g.stopChan:
			return
		}
	}
}

func (g *Gateway) sweepOnce(now time.Time) {
	removed, err := g.odsets.SweepExpired(context.Background(), now)
	if err != nil {
		g.log.Warn("offset sweep failed", zap.Error(err))
		return
	}
	if len(removed) == 0 {
		return
	}

	metrics.OffsetsExpired.Add(float64(len(removed)))
	g.log.Info("expired committed offsets", zap.Int("count", len(removed)))
	for _, e := range removed {
		g.log.Debug("expired offset",
			zap.String("group", e.Group),
			zap.String("partition", e.Ref.String()),
			zap.Int64("offset", e.Record.Offset))
	}
}
