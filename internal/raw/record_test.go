package raw

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloatFallbackChain(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		keys   []string
		want   float64
		wantOK bool
	}{
		{"first key wins", Record{"a": 1.5, "b": 2.0}, []string{"a", "b"}, 1.5, true},
		{"missing falls through", Record{"b": 2.0}, []string{"a", "b"}, 2, true},
		{"nil falls through", Record{"a": nil, "b": 3}, []string{"a", "b"}, 3, true},
		{"numeric string", Record{"a": " 42.5 "}, []string{"a"}, 42.5, true},
		{"garbage string skipped", Record{"a": "n/a", "b": int64(7)}, []string{"a", "b"}, 7, true},
		{"empty string skipped", Record{"a": "", "b": uint32(9)}, []string{"a", "b"}, 9, true},
		{"NaN skipped", Record{"a": math.NaN(), "b": 1}, []string{"a", "b"}, 1, true},
		{"Inf skipped", Record{"a": math.Inf(1)}, []string{"a"}, 0, false},
		{"bool skipped", Record{"a": true}, []string{"a"}, 0, false},
		{"json number", Record{"a": json.Number("12")}, []string{"a"}, 12, true},
		{"zero is finite", Record{"a": 0, "b": 5}, []string{"a", "b"}, 0, true},
		{"nil record", nil, []string{"a"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rec.Float(tt.keys...)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Float = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPositiveSkipsZero(t *testing.T) {
	rec := Record{"a": 0, "b": -1, "c": "3"}
	got, ok := rec.Positive("a", "b", "c")
	if !ok || got != 3 {
		t.Errorf("Positive = %v, %v; want 3, true", got, ok)
	}
}

func TestString(t *testing.T) {
	rec := Record{"empty": "", "name": "eth0", "num": 3}
	if got := rec.String("empty", "name"); got != "eth0" {
		t.Errorf("String = %q, want eth0", got)
	}
	if got := rec.String("missing", "num"); got != "3" {
		t.Errorf("String = %q, want 3", got)
	}
	if got := rec.String("missing"); got != "" {
		t.Errorf("String = %q, want empty", got)
	}
}

func TestRecordsDropsNonObjects(t *testing.T) {
	var decoded any
	if err := json.Unmarshal([]byte(`[{"pid":1},null,"x",42,{"pid":2}]`), &decoded); err != nil {
		t.Fatal(err)
	}
	recs := Records(decoded)
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if pid, _ := recs[1].Float("pid"); pid != 2 {
		t.Errorf("second pid = %v, want 2", pid)
	}
}
