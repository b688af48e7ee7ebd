// Package telemetry defines the boundary between the engine and the OS:
// a Source hands out raw, loosely-shaped readings and can signal processes.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"syscall"

	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// DefaultSignal is sent when the caller names none.
const DefaultSignal = "SIGTERM"

var (
	// ErrInvalidPID rejects a kill request before any OS call.
	ErrInvalidPID = errors.New("invalid PID")
	// ErrUnknownSignal rejects a signal name the platform does not know.
	ErrUnknownSignal = errors.New("unknown signal")
)

// Source is the telemetry collaborator polled by the scheduler. Any method
// may fail independently; a nil payload with a nil error means "no data".
type Source interface {
	SystemInfo(ctx context.Context) (*raw.SystemInfo, error)
	CPULoad(ctx context.Context) (*raw.CPULoad, error)
	GPULoad(ctx context.Context) ([]raw.Record, error)
	IOStats(ctx context.Context) (*raw.IOStats, error)
	KillProcess(ctx context.Context, pid any, signal string) KillResult
}

// KillResult reports a kill attempt. Failures never surface as panics or
// returned errors; Err keeps the typed cause for Go callers.
type KillResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// SignalFunc delivers sig to pid.
type SignalFunc func(ctx context.Context, pid int, sig syscall.Signal) error

// Kill validates pid and signal, then delivers the signal with send. Invalid
// input is rejected without calling send.
func Kill(ctx context.Context, send SignalFunc, pid any, signal string) KillResult {
	n, err := ParsePID(pid)
	if err != nil {
		return KillResult{Error: fmt.Sprintf("Invalid PID: %v", pid), Err: err}
	}
	if signal == "" {
		signal = DefaultSignal
	}
	sig, err := ParseSignal(signal)
	if err != nil {
		return KillResult{Error: err.Error(), Err: err}
	}
	if err := send(ctx, n, sig); err != nil {
		return KillResult{Error: err.Error(), Err: err}
	}
	return KillResult{Success: true}
}

// ParsePID accepts positive integers, integral floats and numeric strings.
// Zero and negative values address process groups and are refused, as are
// values outside the 32-bit range the kernel uses for PIDs.
func ParsePID(v any) (int, error) {
	var pid int64
	ok := false
	switch n := v.(type) {
	case int:
		pid, ok = int64(n), true
	case int32:
		pid, ok = int64(n), true
	case int64:
		pid, ok = n, true
	case uint32:
		pid, ok = int64(n), true
	case float64:
		pid, ok = integral(n)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			pid, ok = i, true
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			pid, ok = integral(f)
		}
	}
	if !ok || pid <= 0 || pid > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPID, v)
	}
	return int(pid), nil
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int64(f), true
}

// ParseSignal maps a name such as "SIGKILL", "KILL" or "9" to a signal.
func ParseSignal(name string) (syscall.Signal, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig, ok := signalByName(name); ok {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, name)
}
