package aggregate

import (
	"math"
	"testing"

	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

func TestNetworkSingleInterface(t *testing.T) {
	got := Network([]raw.Record{{"iface": "en0", "tx_sec": 1048576, "rx_sec": 2097152}}, nil)
	if got.Up != 1 || got.Down != 2 {
		t.Errorf("Up/Down = %v/%v, want 1/2", got.Up, got.Down)
	}
	if len(got.Top) != 1 {
		t.Fatalf("Top len = %d, want 1", len(got.Top))
	}
	if top := got.Top[0]; top.Total != 3 || top.Label != "en0" {
		t.Errorf("Top[0] = %+v", top)
	}
}

func TestNetworkRankingAndNoiseFloor(t *testing.T) {
	stats := []raw.Record{
		{"iface": "lo", "tx_sec": 100, "rx_sec": 100},
		{"iface": "a", "tx_sec": 1 * bytesPerMB},
		{"iface": "b", "rx_sec": 5 * bytesPerMB},
		{"iface": "c", "rx_sec": 3 * bytesPerMB},
		{"iface": "d", "rx_sec": 2 * bytesPerMB},
		{"iface": "e", "rx_sec": 4 * bytesPerMB},
		{"iface": "bad", "rx_sec": "NaN", "tx_sec": nil},
		nil,
	}
	got := Network(stats, map[string]string{"b": "Wi-Fi (10.0.0.2)"})

	want := []string{"Wi-Fi (10.0.0.2)", "e", "c", "d"}
	if len(got.Top) != len(want) {
		t.Fatalf("Top len = %d, want %d: %+v", len(got.Top), len(want), got.Top)
	}
	for i, label := range want {
		if got.Top[i].Label != label {
			t.Errorf("Top[%d] = %q, want %q", i, got.Top[i].Label, label)
		}
	}

	// totals include interfaces below the floor and outside the top list
	wantDown := 14 + 100.0/bytesPerMB
	if math.Abs(got.Down-wantDown) > 1e-9 {
		t.Errorf("Down = %v, want %v", got.Down, wantDown)
	}
}

func TestNetworkEmpty(t *testing.T) {
	got := Network(nil, nil)
	if got.Up != 0 || got.Down != 0 || got.Top == nil || len(got.Top) != 0 {
		t.Errorf("Network(nil) = %+v", got)
	}
}

func TestInterfaceLabels(t *testing.T) {
	labels := InterfaceLabels([]raw.Record{
		{"iface": "en0", "ifaceName": "Wi-Fi", "ip4": "192.168.1.2"},
		{"iface": "en1", "ip6": "fe80::1"},
		{"iface": "utun0", "type": "virtual"},
		nil,
	})
	tests := map[string]string{
		"en0":   "Wi-Fi (192.168.1.2)",
		"en1":   "en1 (fe80::1)",
		"utun0": "utun0",
	}
	for id, want := range tests {
		if labels[id] != want {
			t.Errorf("label[%s] = %q, want %q", id, labels[id], want)
		}
	}
}

func TestDisk(t *testing.T) {
	tests := []struct {
		name  string
		fs    raw.Record
		disks any
		want  [4]float64
	}{
		{
			name:  "array summed",
			fs:    raw.Record{"rx_sec": 2 * bytesPerMB, "wx_sec": bytesPerMB},
			disks: []raw.Record{{"rIO_sec": 10, "wIO_sec": 5}, {"rIO_sec": 2.5, "wIO_sec": "1"}},
			want:  [4]float64{2, 1, 12.5, 6},
		},
		{
			name:  "single record",
			fs:    raw.Record{"rx_sec": "bogus"},
			disks: raw.Record{"rIO_sec": 7, "wIO_sec": 3},
			want:  [4]float64{0, 0, 7, 3},
		},
		{
			name:  "decoded json array",
			fs:    nil,
			disks: []any{map[string]any{"rIO_sec": 1.0}, "junk"},
			want:  [4]float64{0, 0, 1, 0},
		},
		{
			name: "nothing",
			want: [4]float64{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Disk(tt.fs, tt.disks)
			have := [4]float64{got.ReadMBps, got.WriteMBps, got.ReadIOPS, got.WriteIOPS}
			if have != tt.want {
				t.Errorf("Disk = %v, want %v", have, tt.want)
			}
		})
	}
}

func TestVolumesDedupeKeepsLargest(t *testing.T) {
	got := Volumes([]raw.Record{
		{"mount": "/", "size": 100, "used": 50},
		{"mount": "/", "size": 200, "used": 50},
	}, VolumeOptions{})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].SizeBytes != 200 {
		t.Errorf("SizeBytes = %v, want 200", got[0].SizeBytes)
	}
	if got[0].UsagePercent != 25 || got[0].AvailableBytes != 150 {
		t.Errorf("usage/available = %v/%v", got[0].UsagePercent, got[0].AvailableBytes)
	}
}

func TestVolumesFilterNameSort(t *testing.T) {
	got := Volumes([]raw.Record{
		{"mount": "/dev", "size": 1e12},
		{"mount": "/", "size": 500, "used": 100, "available": 300},
		{"mount": "/System/Volumes/Data", "size": 900, "used": 0},
		{"mount": "/Volumes/Backup", "size": 1000, "used": 1000},
		{"mount": "/volumes/backup", "size": 10},
		{"fs": "/Volumes/NoMount", "size": 0},
		{"mount": "/private/var/vm", "size": 50},
		nil,
	}, VolumeOptions{})

	wantNames := []string{"Backup", "System Data", "System Root (/)", "NoMount"}
	if len(got) != len(wantNames) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(wantNames), got)
	}
	for i, name := range wantNames {
		if got[i].Name != name {
			t.Errorf("[%d] name = %q, want %q", i, got[i].Name, name)
		}
	}
	if got[2].AvailableBytes != 300 {
		t.Errorf("explicit available ignored: %v", got[2].AvailableBytes)
	}
	if got[3].UsagePercent != 0 {
		t.Errorf("zero-size usage = %v, want 0", got[3].UsagePercent)
	}
}

func TestVolumesAllowAll(t *testing.T) {
	entries := []raw.Record{
		{"mount": "/home", "fs": "/dev/sda2", "size": 400},
		{"mount": "/boot", "label": "EFI", "size": 1},
	}
	if got := Volumes(entries, VolumeOptions{}); len(got) != 0 {
		t.Errorf("allow-list should hide linux mounts, got %+v", got)
	}
	got := Volumes(entries, VolumeOptions{AllowAll: true})
	if len(got) != 2 || got[0].Name != "/dev/sda2" || got[1].Name != "EFI" {
		t.Errorf("AllowAll = %+v", got)
	}
}
