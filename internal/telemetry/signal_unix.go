//go:build unix

package telemetry

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func signalByName(name string) (syscall.Signal, bool) {
	sig := unix.SignalNum(name)
	return sig, sig != 0
}
