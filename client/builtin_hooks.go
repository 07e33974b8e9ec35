package client

import (
	"context"
	"sync/atomic"
)

// LoggingHook logs every operation at DEBUG with its duration and outcome.
type LoggingHook struct {
	logger Logger
}

// NewLoggingHook creates a hook that logs operations to the given logger.
func NewLoggingHook(logger Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

// Name implements Hook.
func (h *LoggingHook) Name() string { return "logging" }

// Before implements Hook.
func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	h.logger.Debug("operation starting",
		String("op", hookCtx.Op),
		String("fingerprint", hookCtx.Fingerprint),
		String("trace_id", hookCtx.TraceID))
	return nil
}

// After implements Hook.
func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.logger.Debug("operation finished",
		String("op", hookCtx.Op),
		String("fingerprint", hookCtx.Fingerprint),
		String("trace_id", hookCtx.TraceID),
		Duration("duration", hookCtx.Duration),
		Error("error", hookCtx.Error))
	return nil
}

// MetricsHook counts operations with atomic counters. Safe for concurrent
// use; read the totals at any time with GetStats.
type MetricsHook struct {
	TotalOps          atomic.Uint64
	TotalExecutes     atomic.Uint64
	TotalBatches      atomic.Uint64
	TotalTransactions atomic.Uint64
	TotalPings        atomic.Uint64
	TotalErrors       atomic.Uint64
	TotalDurationNs   atomic.Uint64
}

// NewMetricsHook creates a metrics collection hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

// Name implements Hook.
func (h *MetricsHook) Name() string { return "metrics" }

// Before implements Hook.
func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

// After implements Hook.
func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.TotalOps.Add(1)
	h.TotalDurationNs.Add(uint64(hookCtx.Duration.Nanoseconds()))

	switch hookCtx.Op {
	case "execute":
		h.TotalExecutes.Add(1)
	case "batch":
		h.TotalBatches.Add(1)
	case "transaction":
		h.TotalTransactions.Add(1)
	case "ping":
		h.TotalPings.Add(1)
	}

	if hookCtx.Error != nil {
		h.TotalErrors.Add(1)
	}

	return nil
}

// GetStats returns the current totals as a map.
func (h *MetricsHook) GetStats() map[string]interface{} {
	totalOps := h.TotalOps.Load()
	totalDur := h.TotalDurationNs.Load()

	avgDuration := uint64(0)
	if totalOps > 0 {
		avgDuration = totalDur / totalOps
	}

	return map[string]interface{}{
		"total_ops":          totalOps,
		"total_executes":     h.TotalExecutes.Load(),
		"total_batches":      h.TotalBatches.Load(),
		"total_transactions": h.TotalTransactions.Load(),
		"total_pings":        h.TotalPings.Load(),
		"total_errors":       h.TotalErrors.Load(),
		"total_duration_ns":  totalDur,
		"avg_duration_ns":    avgDuration,
	}
}

// Reset clears all counters.
func (h *MetricsHook) Reset() {
	h.TotalOps.Store(0)
	h.TotalExecutes.Store(0)
	h.TotalBatches.Store(0)
	h.TotalTransactions.Store(0)
	h.TotalPings.Store(0)
	h.TotalErrors.Store(0)
	h.TotalDurationNs.Store(0)
}
