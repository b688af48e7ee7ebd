package telemetry

import (
	"context"
	"errors"
	"math"
	"strings"
	"syscall"
	"testing"
)

type sentSignal struct {
	pid int
	sig syscall.Signal
}

func recorder(calls *[]sentSignal, err error) SignalFunc {
	return func(_ context.Context, pid int, sig syscall.Signal) error {
		*calls = append(*calls, sentSignal{pid, sig})
		return err
	}
}

func TestKillInvalidPIDNeverSignals(t *testing.T) {
	for _, pid := range []any{"abc", "", 12.5, -1, 0, nil, []int{1}, int64(1<<32 + 1234)} {
		var calls []sentSignal
		res := Kill(context.Background(), recorder(&calls, nil), pid, "SIGTERM")
		if res.Success {
			t.Errorf("Kill(%v) succeeded", pid)
		}
		if !strings.Contains(res.Error, "Invalid PID") {
			t.Errorf("Kill(%v) error = %q", pid, res.Error)
		}
		if !errors.Is(res.Err, ErrInvalidPID) {
			t.Errorf("Kill(%v) Err = %v, want ErrInvalidPID", pid, res.Err)
		}
		if len(calls) != 0 {
			t.Errorf("Kill(%v) sent %d signals", pid, len(calls))
		}
	}
}

func TestKillDefaultsToSIGTERM(t *testing.T) {
	var calls []sentSignal
	res := Kill(context.Background(), recorder(&calls, nil), 1234, "")
	if !res.Success || res.Error != "" {
		t.Fatalf("Kill = %+v", res)
	}
	if len(calls) != 1 || calls[0] != (sentSignal{1234, syscall.SIGTERM}) {
		t.Errorf("calls = %+v", calls)
	}
}

func TestKillNumericStringAndSignal(t *testing.T) {
	var calls []sentSignal
	res := Kill(context.Background(), recorder(&calls, nil), " 42 ", "kill")
	if !res.Success {
		t.Fatalf("Kill = %+v", res)
	}
	if calls[0] != (sentSignal{42, syscall.SIGKILL}) {
		t.Errorf("calls = %+v", calls)
	}
}

func TestKillPropagatesSendError(t *testing.T) {
	var calls []sentSignal
	res := Kill(context.Background(), recorder(&calls, syscall.EPERM), 99, "SIGTERM")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" || !errors.Is(res.Err, syscall.EPERM) {
		t.Errorf("Kill = %+v", res)
	}
}

func TestKillUnknownSignal(t *testing.T) {
	var calls []sentSignal
	res := Kill(context.Background(), recorder(&calls, nil), 99, "SIGNOPE")
	if res.Success || !errors.Is(res.Err, ErrUnknownSignal) || len(calls) != 0 {
		t.Errorf("Kill = %+v, calls = %d", res, len(calls))
	}
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{1234, 1234, true},
		{int32(7), 7, true},
		{int64(8), 8, true},
		{uint32(9), 9, true},
		{float64(10), 10, true},
		{"11", 11, true},
		{"12.0", 12, true},
		{"12.5", 0, false},
		{"abc", 0, false},
		{0, 0, false},
		{-5, 0, false},
		{true, 0, false},
		{int64(1<<32 + 1234), 0, false},
		{"4294968530", 0, false},
		{float64(1 << 40), 0, false},
		{int64(math.MaxInt32), math.MaxInt32, true},
	}
	for _, tt := range tests {
		got, err := ParsePID(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParsePID(%#v) = %d, %v", tt.in, got, err)
		}
	}
}

func TestParseSignal(t *testing.T) {
	tests := map[string]syscall.Signal{
		"SIGTERM": syscall.SIGTERM,
		"term":    syscall.SIGTERM,
		"SIGKILL": syscall.SIGKILL,
		" int ":   syscall.SIGINT,
		"9":       syscall.Signal(9),
	}
	for in, want := range tests {
		got, err := ParseSignal(in)
		if err != nil || got != want {
			t.Errorf("ParseSignal(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSignal("bogus"); !errors.Is(err, ErrUnknownSignal) {
		t.Errorf("ParseSignal(bogus) err = %v", err)
	}
}

func TestParseNvidiaSMI(t *testing.T) {
	out := "NVIDIA GeForce RTX 3080, 37, 1024, 10240, 61\n" +
		"Tesla T4, [N/A], 0, 15360, 40\n" +
		"garbage line\n"
	got := parseNvidiaSMI(out)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "NVIDIA GeForce RTX 3080" || got[0].Utilization != 37 ||
		got[0].MemUsed != 1024 || got[0].MemTotal != 10240 || got[0].Temperature != 61 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Utilization != 0 {
		t.Errorf("[N/A] utilization = %v, want 0", got[1].Utilization)
	}
}

func TestMergeGPUs(t *testing.T) {
	cards := []gpuCard{
		{Index: 0, Vendor: "Intel Corporation", Model: "UHD Graphics 630"},
		{Index: 1, Vendor: "NVIDIA Corporation", Model: "TU104"},
	}
	metrics := []gpuMetrics{
		{Name: "GeForce RTX 2080", Utilization: 20, MemUsed: 512, MemTotal: 8192, Temperature: 55},
		{Name: "Extra", Utilization: 5},
	}
	got := mergeGPUs(cards, metrics)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Has("utilizationGpu") {
		t.Errorf("integrated card got metrics: %v", got[0])
	}
	if got[1]["model"] != "GeForce RTX 2080" || got[1]["utilizationGpu"] != 20.0 {
		t.Errorf("nvidia card = %v", got[1])
	}
	if got[2]["model"] != "Extra" || got[2]["vendor"] != "NVIDIA" {
		t.Errorf("unmatched row = %v", got[2])
	}
}

func TestGPUProbeCachesInventory(t *testing.T) {
	calls := 0
	p := &gpuProbe{
		logger: nil,
		inventory: func() ([]gpuCard, error) {
			calls++
			return []gpuCard{{Vendor: "AMD", Model: "Radeon"}}, nil
		},
		metrics: func(context.Context) ([]gpuMetrics, error) { return nil, nil },
	}
	for i := 0; i < 3; i++ {
		recs, err := p.load(context.Background())
		if err != nil || len(recs) != 1 {
			t.Fatalf("load = %v, %v", recs, err)
		}
	}
	if calls != 1 {
		t.Errorf("inventory calls = %d, want 1", calls)
	}
}

func TestGPUProbeBothFail(t *testing.T) {
	p := NewHost(nil).gpus
	p.inventory = func() ([]gpuCard, error) { return nil, errors.New("no pci") }
	p.metrics = func(context.Context) ([]gpuMetrics, error) { return nil, errNoNvidiaSMI }
	if _, err := p.load(context.Background()); !errors.Is(err, errNoNvidiaSMI) {
		t.Errorf("err = %v", err)
	}
}

func TestRate(t *testing.T) {
	if got := rate(100, 300, 2); got != 100 {
		t.Errorf("rate = %v, want 100", got)
	}
	if got := rate(300, 100, 2); got != 0 {
		t.Errorf("counter reset rate = %v, want 0", got)
	}
}

func TestSendSignalRefusesOutOfRangePID(t *testing.T) {
	for _, pid := range []int{0, -1, math.MaxInt32 + 1} {
		if err := sendSignal(context.Background(), pid, syscall.SIGCONT); !errors.Is(err, ErrInvalidPID) {
			t.Errorf("sendSignal(%d) = %v, want ErrInvalidPID", pid, err)
		}
	}
}
