// Package scheduler polls a telemetry source on a fixed interval, normalizes
// every stream independently and keeps the rolling histories.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/taskmon/internal/aggregate"
	"github.com/Dicklesworthstone/taskmon/internal/history"
	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/normalize"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
	"github.com/Dicklesworthstone/taskmon/internal/telemetry"
)

const (
	// MinInterval is the fastest allowed polling period.
	MinInterval = 500 * time.Millisecond
	// DefaultInterval is used when none is configured.
	DefaultInterval = 2 * time.Second
)

// ErrNoSource is returned by Poll when no telemetry source is attached.
var ErrNoSource = errors.New("scheduler: no telemetry source")

// State is the lifecycle phase of a Scheduler.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Config holds the options the engine consumes.
type Config struct {
	UpdateInterval time.Duration
	HistoryLength  int
	Volumes        aggregate.VolumeOptions
	// Estimator fills missing GPU readings. Nil leaves them at zero.
	Estimator normalize.Estimator
}

// normalized clamps the interval and history length into their valid ranges.
func (c Config) normalized() Config {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = DefaultInterval
	} else if c.UpdateInterval < MinInterval {
		c.UpdateInterval = MinInterval
	}
	c.HistoryLength = history.Clamp(c.HistoryLength)
	return c
}

// Scheduler owns the polling loop and the long-lived engine state.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	source  telemetry.Source
	cfg     Config
	state   State
	wantRun bool
	parent  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	snap    model.Snapshot
	hist    *history.Set
	gpuHist history.GPUSet
	subs    []chan model.Snapshot
}

// New returns an Idle scheduler. If logger is nil, a discard logger is used.
func New(source telemetry.Source, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.normalized()
	s := &Scheduler{
		logger: logger,
		source: source,
		cfg:    cfg,
		state:  Idle,
		snap:   model.Zero(),
		hist:   history.NewSet(cfg.HistoryLength),
	}
	s.snap.Interval = cfg.UpdateInterval
	s.snap.History = s.hist.Model()
	return s
}

// State reports the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the active configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins polling: one cycle right away, then one per interval. Without
// a source the scheduler stays Idle until SetSource provides one.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wantRun = true
	s.parent = ctx
	if s.state == Running {
		return
	}
	if s.source == nil {
		s.state = Idle
		s.logger.Info("no telemetry source, staying idle")
		return
	}
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = Running
	go s.loop(ctx, s.cfg.UpdateInterval, done)
	s.logger.Debug("polling started", "interval", s.cfg.UpdateInterval, "history_length", s.cfg.HistoryLength)
}

// Stop cancels the loop and waits for it to exit. Any in-flight cycle is
// discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.wantRun = false
	s.mu.Unlock()
	s.stopLoop()
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
}

func (s *Scheduler) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reconfigure applies new settings. A changed history length resizes every
// series in place; a changed interval or length restarts a running loop.
// A nil Estimator keeps the current one.
func (s *Scheduler) Reconfigure(cfg Config) {
	cfg = cfg.normalized()

	s.mu.Lock()
	old := s.cfg
	if cfg.Estimator == nil {
		cfg.Estimator = old.Estimator
	}
	s.cfg = cfg
	if cfg.HistoryLength != old.HistoryLength {
		s.hist.Resize(cfg.HistoryLength)
		s.gpuHist.Resize(cfg.HistoryLength)
		s.snap.History = s.hist.Model()
		s.snap.GPUHistory = s.gpuHist.Model()
	}
	s.snap.Interval = cfg.UpdateInterval
	restart := s.state == Running &&
		(cfg.UpdateInterval != old.UpdateInterval || cfg.HistoryLength != old.HistoryLength)
	s.publishLocked()
	s.mu.Unlock()

	if !restart {
		return
	}
	s.stopLoop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wantRun && s.source != nil && s.cancel == nil {
		s.startLocked()
	}
}

// SetSource swaps the telemetry source. A pending Start begins polling once a
// source is available.
func (s *Scheduler) SetSource(src telemetry.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	if src != nil && s.wantRun && s.state == Idle && s.cancel == nil {
		s.startLocked()
	}
}

// Subscribe returns a channel that receives every published snapshot. The
// buffer holds one value; a slow reader only sees the latest.
func (s *Scheduler) Subscribe() <-chan model.Snapshot {
	ch := make(chan model.Snapshot, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Snapshot returns the most recent state.
func (s *Scheduler) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// SelectGPU changes the highlighted GPU. Out-of-range indices are ignored.
func (s *Scheduler) SelectGPU(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.snap.GPUs) {
		return false
	}
	s.snap.SelectedGPU = i
	s.publishLocked()
	return true
}

// KillProcess forwards a kill request to the source.
func (s *Scheduler) KillProcess(ctx context.Context, pid any, signal string) telemetry.KillResult {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return telemetry.KillResult{Error: ErrNoSource.Error(), Err: ErrNoSource}
	}
	if _, err := telemetry.ParsePID(pid); err != nil {
		return telemetry.KillResult{Error: fmt.Sprintf("Invalid PID: %v", pid), Err: err}
	}
	return src.KillProcess(ctx, pid, signal)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	s.pollLogged(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollLogged(ctx)
		}
	}
}

func (s *Scheduler) pollLogged(ctx context.Context) {
	if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("poll cycle skipped", "error", err)
	}
}

// streams is everything one cycle fetched. A nil error marks a usable stream.
type streams struct {
	sys    *raw.SystemInfo
	sysErr error
	cpu    *raw.CPULoad
	cpuErr error
	gpu    []raw.Record
	gpuErr error
	io     *raw.IOStats
	ioErr  error
}

// Poll runs a single cycle synchronously: the four streams are fetched
// concurrently, then applied one by one. A stream that failed leaves its part
// of the state, histories included, untouched. A cycle whose context is
// cancelled before it applies mutates nothing.
func (s *Scheduler) Poll(ctx context.Context) error {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return ErrNoSource
	}

	var r streams
	var g errgroup.Group
	g.Go(func() error {
		r.sys, r.sysErr = src.SystemInfo(ctx)
		return nil
	})
	g.Go(func() error {
		r.cpu, r.cpuErr = src.CPULoad(ctx)
		return nil
	})
	g.Go(func() error {
		r.gpu, r.gpuErr = src.GPULoad(ctx)
		return nil
	})
	g.Go(func() error {
		r.io, r.ioErr = src.IOStats(ctx)
		return nil
	})
	_ = g.Wait()

	s.logFailure("system", r.sysErr)
	s.logFailure("cpu", r.cpuErr)
	s.logFailure("gpu", r.gpuErr)
	s.logFailure("io", r.ioErr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.applyLocked(r, time.Now())
	s.publishLocked()
	return nil
}

func (s *Scheduler) logFailure(stream string, err error) {
	if err != nil {
		s.logger.Warn("telemetry stream failed", "stream", stream, "error", err)
	}
}

func (s *Scheduler) applyLocked(r streams, now time.Time) {
	length := s.cfg.HistoryLength
	sysOK := r.sysErr == nil && r.sys != nil
	cpuOK := r.cpuErr == nil && r.cpu != nil
	gpuOK := r.gpuErr == nil
	ioOK := r.ioErr == nil && r.io != nil

	s.snap.Timestamp = now
	s.snap.Interval = s.cfg.UpdateInterval

	if sysOK {
		s.snap.Processes = normalize.Processes(r.sys.Processes, normalize.TotalMemory(r.sys.Memory))
		s.snap.Memory = normalize.Memory(r.sys.Memory)
		s.snap.Host = normalize.Host(r.sys)
	}

	var gpus []model.GPU
	if gpuOK {
		gpus = normalize.GPUs(r.gpu, s.cfg.Estimator)
	}

	if cpuOK {
		s.snap.CPU = normalize.CPU(r.cpu)
		s.hist.CPU = history.Append(s.hist.CPU, s.snap.CPU.Overall, length)
		if sysOK {
			s.hist.Memory = history.Append(s.hist.Memory, s.snap.Memory.UsedPercent, length)
		}
		if gpuOK {
			s.hist.GPU = history.Append(s.hist.GPU, normalize.PrimaryUtilization(gpus), length)
		}
	}

	if gpuOK && len(gpus) > 0 {
		s.snap.GPUs = gpus
		utils := make([]float64, len(gpus))
		for i, g := range gpus {
			utils[i] = g.Utilization
		}
		s.gpuHist.Update(utils, length)
		if s.snap.SelectedGPU < 0 || s.snap.SelectedGPU >= len(gpus) {
			s.snap.SelectedGPU = 0
		}
	}

	if ioOK {
		s.snap.Network = aggregate.Network(r.io.Network, aggregate.InterfaceLabels(r.io.NetworkInterfaces))
		s.snap.Disk = aggregate.Disk(r.io.FsStats, r.io.Disks)
		s.hist.NetUp = history.Append(s.hist.NetUp, s.snap.Network.Up, length)
		s.hist.NetDown = history.Append(s.hist.NetDown, s.snap.Network.Down, length)
		s.hist.DiskRead = history.Append(s.hist.DiskRead, s.snap.Disk.ReadMBps, length)
		s.hist.DiskWrite = history.Append(s.hist.DiskWrite, s.snap.Disk.WriteMBps, length)
	}

	switch {
	case ioOK && len(r.io.FsSize) > 0:
		s.snap.Volumes = aggregate.Volumes(r.io.FsSize, s.cfg.Volumes)
	case sysOK && len(r.sys.FsSize) > 0:
		s.snap.Volumes = aggregate.Volumes(r.sys.FsSize, s.cfg.Volumes)
	}

	s.snap.History = s.hist.Model()
	s.snap.GPUHistory = s.gpuHist.Model()
}

func (s *Scheduler) publishLocked() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.snap:
		default:
		}
	}
}
