// Package aggregate folds per-device telemetry (network interfaces, disks,
// mounted volumes) into the summaries shown on the dashboard. Output is
// deterministic for a given input.
package aggregate

import (
	"sort"

	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

const (
	bytesPerMB = 1024 * 1024

	// NoiseFloor is the MB/s total at or below which an interface is idle.
	NoiseFloor = 0.001

	// TopInterfaces caps the ranked interface list.
	TopInterfaces = 4
)

// InterfaceLabels maps interface ids to display labels: the interface name
// followed by its address in parentheses when one is known.
func InterfaceLabels(ifaces []raw.Record) map[string]string {
	labels := make(map[string]string, len(ifaces))
	for _, iface := range ifaces {
		if iface == nil {
			continue
		}
		base := firstNonEmpty(iface.String("ifaceName"), iface.String("iface"), iface.String("type"), "Unknown")
		label := base
		if ip := firstNonEmpty(iface.String("ip4"), iface.String("ip6")); ip != "" {
			label = base + " (" + ip + ")"
		}
		labels[iface.String("iface")] = label
	}
	return labels
}

// Network sums rx/tx across interfaces and ranks the busiest ones.
func Network(stats []raw.Record, labels map[string]string) model.Network {
	summary := model.Network{Top: []model.Interface{}}

	candidates := make([]model.Interface, 0, len(stats))
	for _, st := range stats {
		if st == nil {
			continue
		}
		id := st.String("iface")
		up := st.FloatOr(0, "tx_sec") / bytesPerMB
		down := st.FloatOr(0, "rx_sec") / bytesPerMB
		candidates = append(candidates, model.Interface{
			Iface: id,
			Label: firstNonEmpty(labels[id], id, "Unknown"),
			Up:    up,
			Down:  down,
			Total: up + down,
		})
		summary.Up += up
		summary.Down += down
	}

	for _, c := range candidates {
		if c.Total > NoiseFloor {
			summary.Top = append(summary.Top, c)
		}
	}
	sort.SliceStable(summary.Top, func(i, j int) bool {
		return summary.Top[i].Total > summary.Top[j].Total
	})
	if len(summary.Top) > TopInterfaces {
		summary.Top = summary.Top[:TopInterfaces]
	}
	return summary
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
