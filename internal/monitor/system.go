package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/guidance"
	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/queue"
)

// SystemMonitor samples host CPU and memory usage and submits alerts when
// usage crosses the configured thresholds
type SystemMonitor struct {
	logger          *zap.Logger
	service         string
	cpuThreshold    float64
	memoryThreshold float64
}

// NewSystemMonitor creates a host resources monitor
func NewSystemMonitor(cpuThreshold, memoryThreshold float64, logger *zap.Logger) *SystemMonitor {
	return &SystemMonitor{
		logger:          logger.Named("system-monitor"),
		service:         "system",
		cpuThreshold:    cpuThreshold,
		memoryThreshold: memoryThreshold,
	}
}

// Service implements Monitor.Service
func (m *SystemMonitor) Service() string {
	return m.service
}

// Check samples CPU and memory and submits threshold alerts
func (m *SystemMonitor) Check(ctx context.Context, sink queue.AlertSink) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	m.logger.Debug("Sampled host resources",
		zap.Float64("cpu_percent", cpuPercent[0]),
		zap.Float64("memory_percent", memInfo.UsedPercent))

	if cpuPercent[0] >= m.cpuThreshold {
		summary := fmt.Sprintf("CPU usage is at %.1f%%, above the %.1f%% threshold.", cpuPercent[0], m.cpuThreshold)
		if _, err := sink.Submit(model.AlertDraft{
			Service:     m.service,
			Severity:    model.SeverityHigh,
			Title:       "High CPU Usage Detected",
			Description: guidance.Describe(summary, guidance.Lookup("high_cpu_usage")),
			Context: map[string]string{
				"cpu_percent": fmt.Sprintf("%.1f", cpuPercent[0]),
				"threshold":   fmt.Sprintf("%.1f", m.cpuThreshold),
			},
		}); err != nil {
			m.logger.Warn("CPU alert rejected", zap.Error(err))
		}
	}

	if memInfo.UsedPercent >= m.memoryThreshold {
		summary := fmt.Sprintf("Memory usage is at %.1f%%, above the %.1f%% threshold.", memInfo.UsedPercent, m.memoryThreshold)
		if _, err := sink.Submit(model.AlertDraft{
			Service:     m.service,
			Severity:    model.SeverityHigh,
			Title:       "High Memory Usage Detected",
			Description: guidance.Describe(summary, guidance.Lookup("high_memory_usage")),
			Context: map[string]string{
				"memory_percent": fmt.Sprintf("%.1f", memInfo.UsedPercent),
				"threshold":      fmt.Sprintf("%.1f", m.memoryThreshold),
			},
		}); err != nil {
			m.logger.Warn("Memory alert rejected", zap.Error(err))
		}
	}

	return nil
}
