package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// MaxProcesses caps the process list handed to the engine.
const MaxProcesses = 50

// Host reads the local machine through gopsutil and shapes the results the
// way the engine's normalizers expect (pcpu, memRss, rx_sec, rIO_sec, ...).
// Rates are derived from counter deltas between successive calls.
type Host struct {
	logger *slog.Logger
	gpus   *gpuProbe
	noGPU  bool
	signal SignalFunc

	cpuMu    sync.Mutex
	prevCPU  cpu.TimesStat
	prevCore []cpu.TimesStat

	ioMu     sync.Mutex
	prevNet  map[string]net.IOCountersStat
	prevDisk map[string]disk.IOCountersStat
	prevIOAt time.Time
}

var _ Source = (*Host)(nil)

// NewHost returns a Host source. If logger is nil, a discard logger is used.
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		logger:   logger,
		gpus:     newGPUProbe(logger),
		signal:   sendSignal,
		prevNet:  make(map[string]net.IOCountersStat),
		prevDisk: make(map[string]disk.IOCountersStat),
	}
}

// SystemInfo gathers CPU facts, memory, the busiest processes, volumes and
// the battery/temperature/uptime extras.
func (h *Host) SystemInfo(ctx context.Context) (*raw.SystemInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: memory: %w", err)
	}
	procs, err := h.processes(ctx, vm.Total)
	if err != nil {
		return nil, fmt.Errorf("telemetry: processes: %w", err)
	}

	info := &raw.SystemInfo{
		CPU: h.cpuInfo(ctx),
		Memory: raw.Record{
			"total":     vm.Total,
			"used":      vm.Used,
			"available": vm.Available,
			"free":      vm.Free,
		},
		Processes:   procs,
		Battery:     battery(),
		Temperature: h.temperature(ctx),
		FsSize:      h.fsSize(ctx),
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		info.Time = raw.Record{"uptime": up}
	}
	return info, nil
}

func (h *Host) cpuInfo(ctx context.Context) raw.Record {
	rec := raw.Record{}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		rec["manufacturer"] = infos[0].VendorID
		rec["brand"] = strings.TrimSpace(infos[0].ModelName)
		rec["speed"] = infos[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		rec["physicalCores"] = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		rec["cores"] = n
		rec["processors"] = n
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		rec["load1"] = avg.Load1
		rec["load5"] = avg.Load5
		rec["load15"] = avg.Load15
	}
	return rec
}

func (h *Host) processes(ctx context.Context, totalMem uint64) ([]raw.Record, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]raw.Record, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Skip kernel threads without name
		name, _ := p.NameWithContext(ctx)
		if name == "" {
			continue
		}
		rec := raw.Record{"pid": int(p.Pid), "name": name}
		if v, err := p.CPUPercentWithContext(ctx); err == nil {
			rec["pcpu"] = v
		}
		if v, err := p.MemoryPercentWithContext(ctx); err == nil && totalMem > 0 {
			rec["pmem"] = v
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rec["memRss"] = mi.RSS
			rec["memVsz"] = mi.VMS
		}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			rec["state"] = st[0]
		}
		if v, err := p.UsernameWithContext(ctx); err == nil {
			rec["user"] = v
		}
		if v, err := p.NumThreadsWithContext(ctx); err == nil {
			rec["threads"] = v
		}
		if v, err := p.NumFDsWithContext(ctx); err == nil {
			rec["handles"] = v
		}
		if v, err := p.PpidWithContext(ctx); err == nil {
			rec["parentPid"] = v
		}
		if v, err := p.NiceWithContext(ctx); err == nil {
			rec["priority"] = v
		}
		if v, err := p.CmdlineSliceWithContext(ctx); err == nil && len(v) > 0 {
			rec["command"] = v[0]
			rec["params"] = v[1:]
		}
		if v, err := p.ExeWithContext(ctx); err == nil {
			rec["path"] = v
		}
		if v, err := p.CreateTimeWithContext(ctx); err == nil && v > 0 {
			rec["started"] = time.UnixMilli(v).Format("2006-01-02 15:04:05")
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FloatOr(0, "pcpu") > out[j].FloatOr(0, "pcpu")
	})
	if len(out) > MaxProcesses {
		out = out[:MaxProcesses]
	}
	return out, nil
}

// CPULoad reports overall and per-core load from CPU time deltas. The first
// call measures against boot.
func (h *Host) CPULoad(ctx context.Context) (*raw.CPULoad, error) {
	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("telemetry: cpu times: %w", err)
	}
	cores, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("telemetry: per-core cpu times: %w", err)
	}

	h.cpuMu.Lock()
	defer h.cpuMu.Unlock()

	out := &raw.CPULoad{Fields: raw.Record{}}
	if len(total) > 0 {
		l, u, s := busy(h.prevCPU, total[0])
		out.Fields["currentLoad"] = l
		out.Fields["currentLoadUser"] = u
		out.Fields["currentLoadSystem"] = s
		h.prevCPU = total[0]
	}

	out.Cores = make([]raw.Record, len(cores))
	for i, c := range cores {
		var prev cpu.TimesStat
		if i < len(h.prevCore) {
			prev = h.prevCore[i]
		}
		l, u, s := busy(prev, c)
		out.Cores[i] = raw.Record{"load": l, "loadUser": u, "loadSystem": s}
	}
	h.prevCore = cores
	return out, nil
}

// busy returns total, user and system percentages between two readings.
func busy(prev, cur cpu.TimesStat) (load, user, system float64) {
	dt := cur.Total() - prev.Total()
	if dt <= 0 {
		return 0, 0, 0
	}
	di := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	load = 100 * (1 - di/dt)
	user = 100 * ((cur.User + cur.Nice) - (prev.User + prev.Nice)) / dt
	system = 100 * ((cur.System + cur.Irq + cur.Softirq) - (prev.System + prev.Irq + prev.Softirq)) / dt
	return clampPct(load), clampPct(user), clampPct(system)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// DisableGPU turns GPU probing off; GPULoad then reports no devices.
func (h *Host) DisableGPU() { h.noGPU = true }

// GPULoad lists every GPU with whatever live metrics are available.
func (h *Host) GPULoad(ctx context.Context) ([]raw.Record, error) {
	if h.noGPU {
		return nil, nil
	}
	return h.gpus.load(ctx)
}

// IOStats reports per-interface network rates, filesystem throughput,
// per-disk IOPS and mounted volumes. Rates are absent on the first call.
func (h *Host) IOStats(ctx context.Context) (*raw.IOStats, error) {
	netCounters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("telemetry: net counters: %w", err)
	}
	diskCounters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		h.logger.Debug("disk counters unavailable", "error", err)
	}

	h.ioMu.Lock()
	now := time.Now()
	dt := now.Sub(h.prevIOAt).Seconds()
	first := h.prevIOAt.IsZero() || dt <= 0

	stats := &raw.IOStats{
		Network:           make([]raw.Record, 0, len(netCounters)),
		NetworkInterfaces: h.interfaces(ctx),
		FsStats:           raw.Record{},
		FsSize:            h.fsSize(ctx),
	}

	for _, c := range netCounters {
		rec := raw.Record{"iface": c.Name, "rx_bytes": c.BytesRecv, "tx_bytes": c.BytesSent}
		if prev, ok := h.prevNet[c.Name]; ok && !first {
			rec["rx_sec"] = rate(prev.BytesRecv, c.BytesRecv, dt)
			rec["tx_sec"] = rate(prev.BytesSent, c.BytesSent, dt)
		}
		h.prevNet[c.Name] = c
		stats.Network = append(stats.Network, rec)
	}

	names := make([]string, 0, len(diskCounters))
	for name := range diskCounters {
		if strings.HasPrefix(name, "loop") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	disks := make([]raw.Record, 0, len(names))
	var readBytes, writeBytes float64
	for _, name := range names {
		st := diskCounters[name]
		rec := raw.Record{"name": name}
		if prev, ok := h.prevDisk[name]; ok && !first {
			rec["rIO_sec"] = rate(prev.ReadCount, st.ReadCount, dt)
			rec["wIO_sec"] = rate(prev.WriteCount, st.WriteCount, dt)
			readBytes += rate(prev.ReadBytes, st.ReadBytes, dt)
			writeBytes += rate(prev.WriteBytes, st.WriteBytes, dt)
		}
		h.prevDisk[name] = st
		disks = append(disks, rec)
	}
	stats.Disks = disks
	if !first {
		stats.FsStats["rx_sec"] = readBytes
		stats.FsStats["wx_sec"] = writeBytes
	}

	h.prevIOAt = now
	h.ioMu.Unlock()
	return stats, nil
}

// rate is the per-second delta of a monotonically increasing counter.
// Counter resets yield 0.
func rate(prev, cur uint64, seconds float64) float64 {
	if cur < prev || seconds <= 0 {
		return 0
	}
	return float64(cur-prev) / seconds
}

func (h *Host) interfaces(ctx context.Context) []raw.Record {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		h.logger.Debug("interfaces unavailable", "error", err)
		return nil
	}
	out := make([]raw.Record, 0, len(ifaces))
	for _, iface := range ifaces {
		rec := raw.Record{"iface": iface.Name, "ifaceName": iface.Name, "mac": iface.HardwareAddr}
		for _, a := range iface.Addrs {
			addr, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(addr, ":") {
				if !rec.Has("ip6") {
					rec["ip6"] = addr
				}
			} else if !rec.Has("ip4") {
				rec["ip4"] = addr
			}
		}
		out = append(out, rec)
	}
	return out
}

func (h *Host) fsSize(ctx context.Context) []raw.Record {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		h.logger.Debug("partitions unavailable", "error", err)
		return nil
	}
	out := make([]raw.Record, 0, len(parts))
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u == nil {
			continue
		}
		out = append(out, raw.Record{
			"fs":        p.Device,
			"type":      p.Fstype,
			"mount":     p.Mountpoint,
			"size":      u.Total,
			"used":      u.Used,
			"available": u.Free,
		})
	}
	return out
}

// temperature prefers a package/core sensor, then falls back to the first
// thermal zone.
func (h *Host) temperature(ctx context.Context) raw.Record {
	if temps, _ := host.SensorsTemperaturesWithContext(ctx); len(temps) > 0 {
		for _, t := range temps {
			k := strings.ToLower(t.SensorKey)
			if strings.Contains(k, "package") || strings.Contains(k, "tctl") ||
				strings.Contains(k, "cpu") || strings.Contains(k, "core") {
				return raw.Record{"main": t.Temperature}
			}
		}
	}
	paths, _ := filepath.Glob("/sys/class/thermal/thermal_zone*/temp")
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if v := parseFloat(string(b)) / 1000; v > 0 {
			return raw.Record{"main": v}
		}
	}
	return nil
}

// KillProcess validates the request and signals the process.
func (h *Host) KillProcess(ctx context.Context, pid any, signal string) KillResult {
	res := Kill(ctx, h.signal, pid, signal)
	if !res.Success {
		h.logger.Warn("kill process failed", "pid", pid, "signal", signal, "error", res.Error)
	}
	return res
}

func sendSignal(ctx context.Context, pid int, sig syscall.Signal) error {
	if pid <= 0 || pid > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.SendSignalWithContext(ctx, sig)
}

func battery() raw.Record {
	battPaths, _ := filepath.Glob("/sys/class/power_supply/BAT*/capacity")
	for _, capPath := range battPaths {
		base := filepath.Dir(capPath)
		capBytes, err := os.ReadFile(capPath)
		if err != nil {
			continue
		}
		stateBytes, _ := os.ReadFile(filepath.Join(base, "status"))
		state := strings.TrimSpace(string(stateBytes))
		return raw.Record{
			"hasBattery": true,
			"percent":    parseFloat(string(capBytes)),
			"isCharging": strings.EqualFold(state, "charging"),
			"state":      state,
		}
	}
	return nil
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
