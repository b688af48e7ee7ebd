// Package normalize turns raw telemetry records into the canonical model.
// Every function here is a pure transform: no I/O, no shared state.
package normalize

import (
	"strings"

	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

const (
	bytesPerMB = 1024 * 1024

	// DefaultTotalMemoryBytes stands in for the host total when the source
	// omits it, so percent-based process memory still resolves.
	DefaultTotalMemoryBytes = 16_000_000_000
)

var cpuPercentKeys = []string{"pcpu", "cpu", "cpuPercent"}

// Processes normalizes a process batch. Nil records are skipped; the
// surviving entries keep their relative order.
func Processes(recs []raw.Record, totalMemoryBytes float64) []model.Process {
	out := make([]model.Process, 0, len(recs))
	for i, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, Process(rec, i, totalMemoryBytes))
	}
	return out
}

// Process normalizes one process record. index is the record's position in
// its batch and becomes the ID when the source reports no PID.
func Process(rec raw.Record, index int, totalMemoryBytes float64) model.Process {
	if totalMemoryBytes <= 0 {
		totalMemoryBytes = DefaultTotalMemoryBytes
	}

	pid := int(rec.FloatOr(0, "pid"))
	id := pid
	if id == 0 {
		id = index
	}

	memMB, memPct := ProcessMemory(rec, totalMemoryBytes)

	p := model.Process{
		ID:            id,
		Name:          firstNonEmpty(rec.String("name"), rec.String("command"), model.StatusUnknown),
		PID:           pid,
		CPUPercent:    rec.FloatOr(0, cpuPercentKeys...),
		MemoryMB:      memMB,
		MemoryPercent: memPct,
		Status:        status(rec.String("state")),
		User:          firstNonEmpty(rec.String("user"), "unknown"),
		Threads:       int(rec.FloatOr(0, "threads")),
		Handles:       int(rec.FloatOr(0, "handles")),
		ParentPID:     optionalInt(rec, "parentPid", "ppid"),
		Priority:      optionalInt(rec, "priority"),
		Command:       rec.String("command"),
		Path:          rec.String("path"),
		Args:          args(rec),
		StartedAt:     rec.String("started"),
	}
	if p.Threads <= 0 {
		p.Threads = 1
	}
	return p
}

// ProcessMemory resolves resident memory in MB and its share of total
// memory. Resolution order: percent of total, RSS bytes, VSZ bytes; the first
// positive result wins. The percent is recomputed from the resolved MB when
// possible so that all rows agree on one total.
func ProcessMemory(rec raw.Record, totalMemoryBytes float64) (mb, percent float64) {
	rawPercent := rec.FloatOr(0, "pmem")

	candidates := []float64{0, 0, 0}
	if rawPercent > 0 {
		candidates[0] = rawPercent * totalMemoryBytes / 100 / bytesPerMB
	}
	if rss := rec.FloatOr(0, "memRss"); rss > 0 {
		candidates[1] = rss / bytesPerMB
	}
	if vsz := rec.FloatOr(0, "memVsz"); vsz > 0 {
		candidates[2] = vsz / bytesPerMB
	}
	for _, c := range candidates {
		if c = raw.Finite(c); c > 0 {
			mb = c
			break
		}
	}

	totalMB := totalMemoryBytes / bytesPerMB
	if mb > 0 && totalMB > 0 {
		percent = mb / totalMB * 100
	} else {
		percent = rawPercent
	}
	return mb, raw.Finite(percent)
}

func status(state string) string {
	switch state {
	case "running":
		return model.StatusRunning
	case "":
		return model.StatusUnknown
	}
	return state
}

// args joins list-shaped params; strings pass through.
func args(rec raw.Record) string {
	if list, ok := rec.Strings("params"); ok {
		return strings.Join(list, " ")
	}
	return rec.String("params")
}

// optionalInt treats zero as "not reported".
func optionalInt(rec raw.Record, keys ...string) *int {
	for _, k := range keys {
		if f, ok := rec.Float(k); ok && f != 0 {
			v := int(f)
			return &v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
