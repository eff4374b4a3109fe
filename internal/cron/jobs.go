package cronrunner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chemledger/internal/registry"
	"chemledger/internal/service"
)

// EventSweepJob prunes audit log rows past the retention window. With
// retention <= 0 the job runs but deletes nothing.
func EventSweepJob(events *service.EventService, retention time.Duration, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		removed, err := events.Sweep(ctx, retention)
		if err != nil {
			if logger != nil {
				logger.Warn("event sweep failed", zap.Error(err))
			}
			return
		}
		if removed > 0 && logger != nil {
			logger.Info("event sweep done", zap.Int64("removed", removed))
		}
	}
}

// RegistryProbeJob pings the registry so outages show up in the logs before a
// stakeholder request hits one.
func RegistryProbeJob(oracle registry.Pinger, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := oracle.Ping(probeCtx); err != nil {
			if logger != nil {
				logger.Warn("registry probe failed", zap.Error(err))
			}
			return
		}
		if logger != nil {
			logger.Debug("registry probe ok")
		}
	}
}
