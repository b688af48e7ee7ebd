// Package history keeps fixed-length rolling series for charting. A series is
// ordered oldest first and, after every mutation, has exactly the requested
// length: excess samples are dropped from the front and missing ones are
// zeros padded on the left.
package history

import "github.com/Dicklesworthstone/taskmon/internal/model"

// Bounds for a configured history length. The buffer does not enforce them;
// callers clamp with Clamp before passing a length in.
const (
	MinLength     = 10
	MaxLength     = 360
	DefaultLength = 60
)

// Series is one metric's samples, oldest first.
type Series []float64

// New returns a zero-filled series.
func New(length int) Series {
	if length < 0 {
		length = 0
	}
	return make(Series, length)
}

// Append adds value as the newest sample and fits the result to length.
// The input slice is never modified.
func Append(s Series, value float64, length int) Series {
	if length <= 0 {
		return Series{}
	}
	out := make(Series, length)
	// newest goes last; copy as much of the tail of s as fits before it
	keep := length - 1
	if keep > len(s) {
		keep = len(s)
	}
	copy(out[length-1-keep:length-1], s[len(s)-keep:])
	out[length-1] = value
	return out
}

// Resize fits s to length using the same truncate/left-pad rule as Append.
// Resizing to the current length returns an equal copy.
func Resize(s Series, length int) Series {
	if length <= 0 {
		return Series{}
	}
	out := make(Series, length)
	keep := length
	if keep > len(s) {
		keep = len(s)
	}
	copy(out[length-keep:], s[len(s)-keep:])
	return out
}

// Max returns the largest sample, or floor when every sample is below it.
// Charts use it to scale bars without dividing by zero.
func (s Series) Max(floor float64) float64 {
	m := floor
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}

// Last returns the newest sample.
func (s Series) Last() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// Clamp bounds a configured length to [MinLength, MaxLength]. Zero or
// negative values select DefaultLength.
func Clamp(length int) int {
	if length <= 0 {
		return DefaultLength
	}
	if length < MinLength {
		return MinLength
	}
	if length > MaxLength {
		return MaxLength
	}
	return length
}

// Set holds one series per tracked metric.
type Set struct {
	Length    int
	CPU       Series
	Memory    Series
	GPU       Series
	NetUp     Series
	NetDown   Series
	DiskRead  Series
	DiskWrite Series
}

// NewSet returns a zero-filled set.
func NewSet(length int) *Set {
	return &Set{
		Length:    length,
		CPU:       New(length),
		Memory:    New(length),
		GPU:       New(length),
		NetUp:     New(length),
		NetDown:   New(length),
		DiskRead:  New(length),
		DiskWrite: New(length),
	}
}

// Resize refits every series to length, keeping the newest samples.
func (h *Set) Resize(length int) {
	h.Length = length
	h.CPU = Resize(h.CPU, length)
	h.Memory = Resize(h.Memory, length)
	h.GPU = Resize(h.GPU, length)
	h.NetUp = Resize(h.NetUp, length)
	h.NetDown = Resize(h.NetDown, length)
	h.DiskRead = Resize(h.DiskRead, length)
	h.DiskWrite = Resize(h.DiskWrite, length)
}

// Model copies the set into the published snapshot shape.
func (h *Set) Model() model.History {
	return model.History{
		CPU:       clone(h.CPU),
		Memory:    clone(h.Memory),
		GPU:       clone(h.GPU),
		NetUp:     clone(h.NetUp),
		NetDown:   clone(h.NetDown),
		DiskRead:  clone(h.DiskRead),
		DiskWrite: clone(h.DiskWrite),
	}
}

func clone(s Series) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
