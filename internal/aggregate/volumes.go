package aggregate

import (
	"sort"
	"strings"

	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

const (
	rootMount     = "/"
	dataMount     = "/System/Volumes/Data"
	volumesPrefix = "/Volumes"
)

// VolumeOptions tunes volume filtering.
type VolumeOptions struct {
	// AllowAll keeps every mount when none of them pass the allow-list.
	// The allow-list targets macOS layouts and hides everything on Linux.
	AllowAll bool
}

// Volumes filters, dedupes and names mounted filesystems, largest first.
// Entries sharing a mount path (case-insensitive) collapse to the largest.
func Volumes(entries []raw.Record, opts VolumeOptions) []model.Volume {
	visible := dedupe(entries, visibleMount)
	if len(visible) == 0 && opts.AllowAll {
		visible = dedupe(entries, func(string) bool { return true })
	}

	out := make([]model.Volume, 0, len(visible))
	for _, dev := range visible {
		size := dev.FloatOr(0, "size")
		used := dev.FloatOr(0, "used")
		avail, ok := dev.Positive("available")
		if !ok {
			avail = size - used
		}
		usage := 0.0
		if size > 0 {
			usage = raw.Finite(used / size * 100)
		}
		mount := firstNonEmpty(dev.String("mount"), dev.String("fs"), "Unknown")
		out = append(out, model.Volume{
			Name:           volumeName(mount, dev),
			Mount:          mount,
			SizeBytes:      size,
			UsedBytes:      used,
			AvailableBytes: avail,
			UsagePercent:   usage,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SizeBytes > out[j].SizeBytes })
	return out
}

// dedupe keeps the first-seen order of mounts so ties sort stably.
func dedupe(entries []raw.Record, keep func(mount string) bool) []raw.Record {
	index := make(map[string]int)
	var out []raw.Record
	for _, dev := range entries {
		if dev == nil {
			continue
		}
		mount := firstNonEmpty(dev.String("mount"), dev.String("fs"))
		if mount == "" || !keep(mount) {
			continue
		}
		key := strings.ToLower(mount)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, dev)
			continue
		}
		if dev.FloatOr(0, "size") > out[i].FloatOr(0, "size") {
			out[i] = dev
		}
	}
	return out
}

func visibleMount(mount string) bool {
	return mount == rootMount || mount == dataMount || strings.HasPrefix(mount, volumesPrefix)
}

func volumeName(mount string, dev raw.Record) string {
	switch {
	case mount == rootMount:
		return "System Root (/)"
	case mount == dataMount:
		return "System Data"
	case strings.HasPrefix(mount, volumesPrefix+"/"):
		return strings.TrimPrefix(mount, volumesPrefix+"/")
	}
	return firstNonEmpty(dev.String("label"), dev.String("fs"), mount, "Unknown")
}
