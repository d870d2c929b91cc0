// Package sysmetrics collects one point-in-time SystemMetrics snapshot
// (spec.md §3) using gopsutil's host-independent sampling.
package sysmetrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/wayfind/Cortex/domain/report"
)

// Collector samples host vitals. DiskPath names the mount point sampled for
// disk usage, e.g. "/".
type Collector struct {
	DiskPath string
}

// New returns a collector sampling the given disk mount point.
func New(diskPath string) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Collector{DiskPath: diskPath}
}

// Collect takes one sample of CPU, memory, disk, load, uptime, process
// count, and cumulative disk/network IO counters.
func (c *Collector) Collect(ctx context.Context) (report.SystemMetrics, error) {
	var m report.SystemMetrics

	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return m, fmt.Errorf("sample cpu: %w", err)
	}
	if len(cpuPct) > 0 {
		m.CPUPercent = cpuPct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return m, fmt.Errorf("sample memory: %w", err)
	}
	m.MemoryPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, c.DiskPath)
	if err != nil {
		return m, fmt.Errorf("sample disk %s: %w", c.DiskPath, err)
	}
	m.DiskPercent = du.UsedPercent

	avg, err := load.AvgWithContext(ctx)
	if err == nil && avg != nil {
		m.LoadAverage = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	}

	uptime, err := host.UptimeWithContext(ctx)
	if err == nil {
		m.UptimeSeconds = int64(uptime)
	}

	if procs, err := process.PidsWithContext(ctx); err == nil {
		m.ProcessCount = len(procs)
	}

	if counters, err := disk.IOCountersWithContext(ctx); err == nil {
		m.DiskIO = map[string]int64{}
		var readBytes, writeBytes uint64
		for _, ctr := range counters {
			readBytes += ctr.ReadBytes
			writeBytes += ctr.WriteBytes
		}
		m.DiskIO["read_bytes"] = int64(readBytes)
		m.DiskIO["write_bytes"] = int64(writeBytes)
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		m.NetworkIO = map[string]int64{
			"bytes_sent": int64(counters[0].BytesSent),
			"bytes_recv": int64(counters[0].BytesRecv),
		}
	}

	return m, nil
}
