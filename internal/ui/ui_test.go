package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/taskmon/internal/config"
	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
	"github.com/Dicklesworthstone/taskmon/internal/scheduler"
	"github.com/Dicklesworthstone/taskmon/internal/telemetry"
)

type stubSource struct {
	killed []any
}

func (s *stubSource) SystemInfo(context.Context) (*raw.SystemInfo, error) {
	return &raw.SystemInfo{
		Memory: raw.Record{"total": float64(8 << 30), "used": float64(2 << 30)},
		Processes: []raw.Record{
			{"pid": 10, "name": "zsh", "pcpu": 1.0, "memRss": 2 << 20},
			{"pid": 20, "name": "chrome", "pcpu": 35.0, "memRss": 900 << 20},
			{"pid": 5, "name": "Xorg", "pcpu": 4.0, "memRss": 120 << 20},
		},
	}, nil
}

func (s *stubSource) CPULoad(context.Context) (*raw.CPULoad, error) {
	return &raw.CPULoad{Fields: raw.Record{"currentLoad": 12}}, nil
}

func (s *stubSource) GPULoad(context.Context) ([]raw.Record, error) {
	return []raw.Record{{"model": "iGPU"}, {"model": "RTX", "utilizationGpu": 40, "temperatureGpu": 65, "memoryUsed": 2048, "memoryTotal": 8192}}, nil
}

func (s *stubSource) IOStats(context.Context) (*raw.IOStats, error) {
	return &raw.IOStats{Network: []raw.Record{{"iface": "eth0", "rx_sec": 1 << 20}}}, nil
}

func (s *stubSource) KillProcess(_ context.Context, pid any, _ string) telemetry.KillResult {
	s.killed = append(s.killed, pid)
	return telemetry.KillResult{Success: true}
}

func newTestModel(t *testing.T) (*Model, *stubSource) {
	t.Helper()
	src := &stubSource{}
	sched := scheduler.New(src, scheduler.Config{HistoryLength: 10}, nil)
	if err := sched.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	m := New(sched, config.Default())
	return m, src
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewRendersSnapshot(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"CPU", "Memory", "GPU 1/2", "iGPU", "~", "eth0", "chrome", "Processes (3, by cpu)"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewEmptySnapshot(t *testing.T) {
	sched := scheduler.New(nil, scheduler.Config{}, nil)
	m := New(sched, config.Default())
	out := m.View()
	if !strings.Contains(out, "no volumes") || !strings.Contains(out, "no traffic") {
		t.Errorf("empty view = %q", out)
	}
}

func TestCycleGPU(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(key("g"))
	if m.latest.SelectedGPU != 1 {
		t.Fatalf("selected = %d, want 1", m.latest.SelectedGPU)
	}
	if !strings.Contains(m.View(), "GPU 2/2") {
		t.Error("view not showing second GPU")
	}
	if !strings.Contains(m.View(), "mem 2048/8192 MiB (25%)") {
		t.Error("view not showing gpu memory usage")
	}
	m.Update(key("g"))
	if m.latest.SelectedGPU != 0 {
		t.Errorf("selected = %d, want wrap to 0", m.latest.SelectedGPU)
	}
}

func TestKillSelectedProcess(t *testing.T) {
	m, src := newTestModel(t)
	m.Update(key("j"))
	_, cmd := m.Update(key("K"))
	if cmd == nil {
		t.Fatal("no kill command")
	}
	msg := cmd()
	m.Update(msg)

	// default sort is cpu: chrome, Xorg, zsh
	if len(src.killed) != 1 || src.killed[0] != 5 {
		t.Errorf("killed = %v, want [5]", src.killed)
	}
	if !strings.Contains(m.status, "SIGKILL") {
		t.Errorf("status = %q", m.status)
	}
}

func TestSortProcesses(t *testing.T) {
	procs := []model.Process{
		{PID: 3, Name: "b", CPUPercent: 5, MemoryMB: 10},
		{PID: 1, Name: "A", CPUPercent: 50, MemoryMB: 1},
		{PID: 2, Name: "c", CPUPercent: 5, MemoryMB: 100},
	}
	tests := map[string][]int{
		"cpu":  {1, 3, 2},
		"mem":  {2, 3, 1},
		"pid":  {1, 2, 3},
		"name": {1, 3, 2},
	}
	for key, want := range tests {
		got := sortProcesses(procs, key)
		for i, pid := range want {
			if got[i].PID != pid {
				t.Errorf("%s: order = %v, want %v", key, pids(got), want)
				break
			}
		}
	}
	if procs[0].PID != 3 {
		t.Error("input reordered")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 50, 100, 200}, 100, 10); got != "▁▄██" {
		t.Errorf("sparkline = %q", got)
	}
	if got := sparkline([]float64{1, 2, 3}, 3, 2); len([]rune(got)) != 2 {
		t.Errorf("width not applied: %q", got)
	}
}

func TestNextSort(t *testing.T) {
	if nextSort("cpu") != "mem" || nextSort("name") != "cpu" || nextSort("bogus") != "cpu" {
		t.Error("sort cycle broken")
	}
}

func pids(procs []model.Process) []int {
	out := make([]int, len(procs))
	for i, p := range procs {
		out[i] = p.PID
	}
	return out
}
