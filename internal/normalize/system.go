package normalize

import (
	"strings"

	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// Memory normalizes the host memory record.
func Memory(rec raw.Record) model.Memory {
	m := model.Memory{
		TotalBytes: rec.FloatOr(0, "total"),
		UsedBytes:  rec.FloatOr(0, "used"),
	}
	if avail, ok := rec.Positive("available", "free"); ok {
		m.AvailableBytes = avail
	} else if m.TotalBytes > m.UsedBytes {
		m.AvailableBytes = m.TotalBytes - m.UsedBytes
	}
	m.UsedPercent = MemoryPercent(rec)
	return m
}

// MemoryPercent is used/total as a percentage, 0 when either is missing.
func MemoryPercent(rec raw.Record) float64 {
	total, ok := rec.Positive("total")
	if !ok {
		return 0
	}
	used := rec.FloatOr(0, "used")
	return raw.Finite(used / total * 100)
}

// TotalMemory returns the host total in bytes, or DefaultTotalMemoryBytes.
func TotalMemory(rec raw.Record) float64 {
	if total, ok := rec.Positive("total"); ok {
		return total
	}
	return DefaultTotalMemoryBytes
}

// Host extracts the display extras from a system info reading.
func Host(info *raw.SystemInfo) model.Host {
	if info == nil {
		return model.Host{}
	}
	h := model.Host{
		CPUBrand: strings.TrimSpace(strings.Join(nonEmpty(
			info.CPU.String("manufacturer"),
			info.CPU.String("brand"),
		), " ")),
		PhysicalCores:  int(info.CPU.FloatOr(0, "physicalCores", "cores")),
		LogicalCores:   int(info.CPU.FloatOr(0, "processors", "cores")),
		UptimeSeconds:  info.Time.FloatOr(0, "uptime"),
		CPUTemperature: info.Temperature.FloatOr(0, "main"),
	}
	if pct, ok := info.Battery.Float("percent"); ok {
		h.BatteryPercent = pct
		h.HasBattery = true
	}
	if h.UptimeSeconds < 0 {
		h.UptimeSeconds = 0
	}
	return h
}

func nonEmpty(vals ...string) []string {
	out := vals[:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
