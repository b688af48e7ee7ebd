package history

// GPUSet is a positional list of series, one per GPU. Index i always tracks
// the i-th device reported by the source.
type GPUSet struct {
	series []Series
}

// Update appends one utilization sample per GPU. When fewer GPUs are reported
// than before the trailing series are dropped; new indices start from a
// zero-filled series.
func (g *GPUSet) Update(values []float64, length int) {
	next := make([]Series, len(values))
	for i, v := range values {
		prev := New(length)
		if i < len(g.series) {
			prev = g.series[i]
		}
		next[i] = Append(prev, v, length)
	}
	g.series = next
}

// Resize refits every per-GPU series to length.
func (g *GPUSet) Resize(length int) {
	for i, s := range g.series {
		g.series[i] = Resize(s, length)
	}
}

// Len is the number of tracked GPUs.
func (g *GPUSet) Len() int { return len(g.series) }

// Model copies every series for publishing.
func (g *GPUSet) Model() [][]float64 {
	out := make([][]float64, len(g.series))
	for i, s := range g.series {
		out[i] = clone(s)
	}
	return out
}
