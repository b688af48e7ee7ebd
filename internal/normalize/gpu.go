package normalize

import (
	"math/rand"
	"sync"

	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// Estimator supplies stand-in GPU readings for devices that report no
// utilization or temperature. Results are always flagged as estimated on the
// GPU model so consumers can tell them apart from real readings.
type Estimator interface {
	Utilization() float64
	Temperature() float64
}

// RandomEstimator draws utilization from [0,50) and temperature from [40,70).
type RandomEstimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomEstimator returns an estimator seeded with seed.
func NewRandomEstimator(seed int64) *RandomEstimator {
	return &RandomEstimator{rng: rand.New(rand.NewSource(seed))}
}

func (e *RandomEstimator) Utilization() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() * 50
}

func (e *RandomEstimator) Temperature() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()*30 + 40
}

// NoEstimate leaves missing GPU readings at zero, still flagged as estimated.
type NoEstimate struct{}

func (NoEstimate) Utilization() float64 { return 0 }
func (NoEstimate) Temperature() float64 { return 0 }

// GPUs normalizes the GPU list. Nil records are skipped. A nil estimator
// behaves like NoEstimate.
func GPUs(recs []raw.Record, est Estimator) []model.GPU {
	if est == nil {
		est = NoEstimate{}
	}
	out := make([]model.GPU, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, GPU(rec, est))
	}
	return out
}

// GPU normalizes one controller. Memory may be given in MiB (memoryUsed,
// memoryTotal) or in bytes (memoryUsedBytes, memoryTotalBytes).
func GPU(rec raw.Record, est Estimator) model.GPU {
	g := model.GPU{
		Model:            firstNonEmpty(rec.String("model", "name"), "INTEGRATED"),
		MemoryUsedBytes:  memoryBytes(rec, "memoryUsedBytes", "memoryUsed"),
		MemoryTotalBytes: memoryBytes(rec, "memoryTotalBytes", "memoryTotal"),
	}

	// Zero is how most drivers report "unsupported", so only positive
	// readings count as real.
	if v, ok := rec.Positive("utilizationGpu", "utilization"); ok {
		g.Utilization = v
	} else {
		g.Utilization = est.Utilization()
		g.UtilizationEstimated = true
	}
	if v, ok := rec.Positive("temperatureGpu", "temperature"); ok {
		g.Temperature = v
	} else {
		g.Temperature = est.Temperature()
		g.TemperatureEstimated = true
	}
	return g
}

func memoryBytes(rec raw.Record, bytesKey, mibKey string) float64 {
	if v, ok := rec.Float(bytesKey); ok {
		return v
	}
	if v, ok := rec.Float(mibKey); ok {
		return v * bytesPerMB
	}
	return 0
}

// PrimaryUtilization is the first GPU's utilization, 0 with no GPUs.
func PrimaryUtilization(gpus []model.GPU) float64 {
	if len(gpus) == 0 {
		return 0
	}
	return raw.Finite(gpus[0].Utilization)
}
