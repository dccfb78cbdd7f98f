package telemetry

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var liveObjectsGauge, _ = meter.Int64Gauge("live_objects")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// PerfStats is one sample of process resource usage.
type PerfStats struct {
	CPUPercent  float64
	AllocatedMB int64
	LiveObjects int64
	Goroutines  int64
}

// RecordPerfStats takes a single sample of process resource usage and records it
// against the global meter provider. a run is short lived so there is no ticker.
func RecordPerfStats(ctx context.Context, tel API) PerfStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := PerfStats{
		AllocatedMB: int64(memStats.Alloc / 1_000_000),
		LiveObjects: int64(memStats.Mallocs) - int64(memStats.Frees),
		Goroutines:  int64(runtime.NumGoroutine()),
	}

	// interval 0 compares against the last call, which is the process start on the first call
	cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuUsage) > 0 {
		stats.CPUPercent = cpuUsage[0]
		cpuGauge.Record(ctx, stats.CPUPercent)
	} else {
		tel.ReportWarning("perf_stats.cpu", err)
	}

	memoryGauge.Record(ctx, stats.AllocatedMB)
	liveObjectsGauge.Record(ctx, stats.LiveObjects)
	goroutineGauge.Record(ctx, stats.Goroutines)

	tel.ReportDebug(
		"perf stats",
		stats.CPUPercent,
		stats.AllocatedMB,
		stats.LiveObjects,
		stats.Goroutines,
	)
	return stats
}
