package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jaypipes/ghw"

	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

const (
	gpuInventoryTTL = 30 * time.Second
	nvidiaTimeout   = 400 * time.Millisecond
)

// gpuCard is the static part of a controller as reported by ghw.
type gpuCard struct {
	Index  int
	Vendor string
	Model  string
	Driver string
}

// gpuMetrics is one nvidia-smi row. Memory is in MiB.
type gpuMetrics struct {
	Name        string
	Utilization float64
	MemUsed     float64
	MemTotal    float64
	Temperature float64
}

// gpuProbe merges the PCI inventory with live nvidia-smi readings. The
// inventory rarely changes and is cached.
type gpuProbe struct {
	logger *slog.Logger

	inventory func() ([]gpuCard, error)
	metrics   func(ctx context.Context) ([]gpuMetrics, error)

	mu        sync.Mutex
	cards     []gpuCard
	fetchedAt time.Time
}

func newGPUProbe(logger *slog.Logger) *gpuProbe {
	return &gpuProbe{
		logger:    logger,
		inventory: ghwInventory,
		metrics:   nvidiaSMI,
	}
}

func (p *gpuProbe) load(ctx context.Context) ([]raw.Record, error) {
	cards, invErr := p.cachedInventory()
	metrics, smiErr := p.metrics(ctx)
	if smiErr != nil {
		p.logger.Debug("nvidia-smi unavailable", "error", smiErr)
	}

	recs := mergeGPUs(cards, metrics)
	if len(recs) == 0 && invErr != nil && smiErr != nil {
		return nil, fmt.Errorf("telemetry: gpu: ghw: %v; nvidia-smi: %w", invErr, smiErr)
	}
	return recs, nil
}

func (p *gpuProbe) cachedInventory() ([]gpuCard, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetchedAt.IsZero() && time.Since(p.fetchedAt) < gpuInventoryTTL {
		return p.cards, nil
	}
	cards, err := p.inventory()
	if err != nil {
		// keep serving the stale list
		return p.cards, err
	}
	p.cards = cards
	p.fetchedAt = time.Now()
	return cards, nil
}

// mergeGPUs pairs nvidia-smi rows with NVIDIA cards in order. Rows without a
// matching card are appended; cards without metrics carry only static data.
func mergeGPUs(cards []gpuCard, metrics []gpuMetrics) []raw.Record {
	recs := make([]raw.Record, 0, len(cards)+len(metrics))
	next := 0
	for _, c := range cards {
		rec := raw.Record{"vendor": c.Vendor, "model": c.Model, "driver": c.Driver, "index": c.Index}
		if strings.Contains(strings.ToLower(c.Vendor), "nvidia") && next < len(metrics) {
			applyMetrics(rec, metrics[next])
			next++
		}
		recs = append(recs, rec)
	}
	for _, m := range metrics[next:] {
		rec := raw.Record{"vendor": "NVIDIA", "model": m.Name}
		applyMetrics(rec, m)
		recs = append(recs, rec)
	}
	return recs
}

func applyMetrics(rec raw.Record, m gpuMetrics) {
	if m.Name != "" {
		rec["model"] = m.Name
	}
	rec["utilizationGpu"] = m.Utilization
	rec["memoryUsed"] = m.MemUsed
	rec["memoryTotal"] = m.MemTotal
	rec["temperatureGpu"] = m.Temperature
}

func ghwInventory() ([]gpuCard, error) {
	info, err := ghw.GPU()
	if err != nil {
		return nil, err
	}
	cards := make([]gpuCard, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		c := gpuCard{Index: card.Index}
		if card.DeviceInfo != nil {
			c.Driver = strings.TrimSpace(card.DeviceInfo.Driver)
			if card.DeviceInfo.Vendor != nil {
				c.Vendor = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
			if card.DeviceInfo.Product != nil {
				c.Model = strings.TrimSpace(card.DeviceInfo.Product.Name)
			}
		}
		if c.Model == "" {
			c.Model = c.Vendor
		}
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Index < cards[j].Index })
	return cards, nil
}

var errNoNvidiaSMI = errors.New("nvidia-smi not found")

func nvidiaSMI(ctx context.Context) ([]gpuMetrics, error) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return nil, errNoNvidiaSMI
	}
	out, err := runCmd(ctx, nvidiaTimeout, "nvidia-smi",
		"--query-gpu=name,utilization.gpu,memory.used,memory.total,temperature.gpu",
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil, err
	}
	return parseNvidiaSMI(out), nil
}

// parseNvidiaSMI reads csv,noheader,nounits output. "[N/A]" fields parse as 0.
func parseNvidiaSMI(out string) []gpuMetrics {
	var gpus []gpuMetrics
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 5 {
			continue
		}
		gpus = append(gpus, gpuMetrics{
			Name:        strings.TrimSpace(parts[0]),
			Utilization: parseFloat(parts[1]),
			MemUsed:     parseFloat(parts[2]),
			MemTotal:    parseFloat(parts[3]),
			Temperature: parseFloat(parts[4]),
		})
	}
	return gpus
}

func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
