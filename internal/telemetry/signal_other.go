//go:build !unix

package telemetry

import "syscall"

func signalByName(name string) (syscall.Signal, bool) {
	switch name {
	case "SIGTERM":
		return syscall.SIGTERM, true
	case "SIGKILL":
		return syscall.SIGKILL, true
	case "SIGINT":
		return syscall.SIGINT, true
	}
	return 0, false
}
