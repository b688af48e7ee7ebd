package aggregate

import (
	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// Disk combines filesystem throughput with disk IOPS. disks may be a single
// record or a list of per-device records; lists are summed.
func Disk(fsStats raw.Record, disks any) model.DiskIO {
	var readIOPS, writeIOPS float64
	if rec, ok := raw.AsRecord(disks); ok {
		readIOPS = rec.FloatOr(0, "rIO_sec")
		writeIOPS = rec.FloatOr(0, "wIO_sec")
	} else {
		for _, rec := range raw.Records(disks) {
			readIOPS += rec.FloatOr(0, "rIO_sec")
			writeIOPS += rec.FloatOr(0, "wIO_sec")
		}
	}

	return model.DiskIO{
		ReadMBps:  fsStats.FloatOr(0, "rx_sec") / bytesPerMB,
		WriteMBps: fsStats.FloatOr(0, "wx_sec") / bytesPerMB,
		ReadIOPS:  raw.Finite(readIOPS),
		WriteIOPS: raw.Finite(writeIOPS),
	}
}
