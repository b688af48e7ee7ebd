// Package raw models the loosely-typed telemetry records handed over by a
// telemetry source. Fields may be missing, nil, numeric strings, or spelled
// differently depending on the platform and library version, so every read
// goes through a fallback chain of candidate keys.
package raw

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is a single raw entity: a process, a core, a GPU, a network
// interface, a disk or a filesystem volume.
type Record map[string]any

// Float walks keys in order and returns the first value that coerces to a
// finite number. Absent keys, nil, empty strings, bools and NaN/Inf are
// skipped.
func (r Record) Float(keys ...string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if f, ok := ToFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// FloatOr is Float with a default for when no candidate resolves.
func (r Record) FloatOr(def float64, keys ...string) float64 {
	if f, ok := r.Float(keys...); ok {
		return f
	}
	return def
}

// Positive returns the first candidate that resolves to a finite value > 0.
// Zero is treated as "not reported", matching how most sources fill gaps.
func (r Record) Positive(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := r.Float(k); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

// String returns the first candidate holding a non-empty string. Numbers are
// formatted so an interface name reported as 0 still yields "0".
func (r Record) String(keys ...string) string {
	if r == nil {
		return ""
	}
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case fmt.Stringer:
			if s := v.String(); s != "" {
				return s
			}
		case int, int32, int64, uint, uint32, uint64, float32, float64:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Strings returns the value at key as a list of strings. A plain string is
// returned as a one-element list.
func (r Record) Strings(key string) ([]string, bool) {
	switch v := r[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	}
	return nil, false
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// ToFloat coerces v into a finite float64.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Finite returns f, or 0 when f is NaN or infinite.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Records converts a decoded JSON array (or an already typed slice) into
// records. Elements that are not objects are dropped.
func Records(v any) []Record {
	switch list := v.(type) {
	case []Record:
		return list
	case []map[string]any:
		out := make([]Record, 0, len(list))
		for _, m := range list {
			if m != nil {
				out = append(out, Record(m))
			}
		}
		return out
	case []any:
		out := make([]Record, 0, len(list))
		for _, item := range list {
			if rec, ok := AsRecord(item); ok {
				out = append(out, rec)
			}
		}
		return out
	}
	return nil
}

// AsRecord returns v as a Record when it is an object.
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, m != nil
	case map[string]any:
		return Record(m), m != nil
	}
	return nil, false
}
