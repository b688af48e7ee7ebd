package model

import "time"

// Process status values produced by normalization. Any other raw state string
// is passed through as-is.
const (
	StatusRunning = "Running"
	StatusUnknown = "Unknown"
)

// Process is the canonical per-process row. Rebuilt every cycle; PID is the
// identity.
type Process struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	PID           int     `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      float64 `json:"memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	Status        string  `json:"status"`
	User          string  `json:"user"`
	Threads       int     `json:"threads"`
	Handles       int     `json:"handles"`
	ParentPID     *int    `json:"parent_pid,omitempty"`
	Priority      *int    `json:"priority,omitempty"`
	Command       string  `json:"command"`
	Path          string  `json:"path"`
	Args          string  `json:"args"`
	StartedAt     string  `json:"started_at"`
}

// CoreLoad is one logical core, percentages 0-100.
type CoreLoad struct {
	Index      int     `json:"index"`
	Load       float64 `json:"load"`
	UserLoad   float64 `json:"user_load"`
	SystemLoad float64 `json:"system_load"`
}

// CPULoad aggregates instantaneous CPU usage.
type CPULoad struct {
	Overall float64    `json:"overall"`
	User    float64    `json:"user"`
	System  float64    `json:"system"`
	Cores   []CoreLoad `json:"cores"`
}

// Memory captures RAM usage in bytes.
type Memory struct {
	TotalBytes     float64 `json:"total_bytes"`
	UsedBytes      float64 `json:"used_bytes"`
	AvailableBytes float64 `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// GPU holds a single device snapshot. The Estimated flags are set when the
// source reported nothing and the value was synthesized.
type GPU struct {
	Model                string  `json:"model"`
	MemoryUsedBytes      float64 `json:"memory_used_bytes"`
	MemoryTotalBytes     float64 `json:"memory_total_bytes"`
	Utilization          float64 `json:"utilization"`
	UtilizationEstimated bool    `json:"utilization_estimated,omitempty"`
	Temperature          float64 `json:"temperature"`
	TemperatureEstimated bool    `json:"temperature_estimated,omitempty"`
}

// MemoryPercent is used/total, 0 when the total is unknown.
func (g GPU) MemoryPercent() float64 {
	if g.MemoryTotalBytes <= 0 {
		return 0
	}
	return g.MemoryUsedBytes / g.MemoryTotalBytes * 100
}

// Interface is one ranked network interface, rates in MB/s.
type Interface struct {
	Iface string  `json:"iface"`
	Label string  `json:"label"`
	Up    float64 `json:"up"`
	Down  float64 `json:"down"`
	Total float64 `json:"total"`
}

// Network sums throughput across interfaces and keeps the busiest few.
type Network struct {
	Up   float64     `json:"up"`
	Down float64     `json:"down"`
	Top  []Interface `json:"top"`
}

// DiskIO holds filesystem throughput (MB/s) and summed disk IOPS.
type DiskIO struct {
	ReadMBps  float64 `json:"read_mbps"`
	WriteMBps float64 `json:"write_mbps"`
	ReadIOPS  float64 `json:"read_iops"`
	WriteIOPS float64 `json:"write_iops"`
}

// Volume is a mounted filesystem shown in the storage view.
type Volume struct {
	Name           string  `json:"name"`
	Mount          string  `json:"mount"`
	SizeBytes      float64 `json:"size_bytes"`
	UsedBytes      float64 `json:"used_bytes"`
	AvailableBytes float64 `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// Host carries the slow-moving extras of a system info reading.
type Host struct {
	CPUBrand       string  `json:"cpu_brand"`
	PhysicalCores  int     `json:"physical_cores"`
	LogicalCores   int     `json:"logical_cores"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	CPUTemperature float64 `json:"cpu_temperature"`
	BatteryPercent float64 `json:"battery_percent"`
	HasBattery     bool    `json:"has_battery"`
}

// History is the set of rolling series, oldest sample first.
type History struct {
	CPU       []float64 `json:"cpu"`
	Memory    []float64 `json:"memory"`
	GPU       []float64 `json:"gpu"`
	NetUp     []float64 `json:"net_up"`
	NetDown   []float64 `json:"net_down"`
	DiskRead  []float64 `json:"disk_read"`
	DiskWrite []float64 `json:"disk_write"`
}

// Snapshot is the full state published after every cycle. Slices are copies
// and safe to retain.
type Snapshot struct {
	Timestamp   time.Time     `json:"timestamp"`
	Interval    time.Duration `json:"interval"`
	Host        Host          `json:"host"`
	Processes   []Process     `json:"processes"`
	CPU         CPULoad       `json:"cpu"`
	Memory      Memory        `json:"memory"`
	GPUs        []GPU         `json:"gpus"`
	SelectedGPU int           `json:"selected_gpu"`
	Network     Network       `json:"network"`
	Disk        DiskIO        `json:"disk"`
	Volumes     []Volume      `json:"volumes"`
	History     History       `json:"history"`
	GPUHistory  [][]float64   `json:"gpu_history"`
}

// ActiveGPU returns the selected GPU, falling back to the first one.
func (s Snapshot) ActiveGPU() (GPU, bool) {
	if s.SelectedGPU >= 0 && s.SelectedGPU < len(s.GPUs) {
		return s.GPUs[s.SelectedGPU], true
	}
	if len(s.GPUs) > 0 {
		return s.GPUs[0], true
	}
	return GPU{}, false
}

// Zero returns an empty snapshot whose lists encode as [] rather than null.
func Zero() Snapshot {
	return Snapshot{
		Timestamp:  time.Now(),
		Processes:  []Process{},
		CPU:        CPULoad{Cores: []CoreLoad{}},
		GPUs:       []GPU{},
		Network:    Network{Top: []Interface{}},
		Volumes:    []Volume{},
		GPUHistory: [][]float64{},
	}
}
