package normalize

import (
	"encoding/json"
	"testing"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"millones", "15 millones de pesos", 15_000_000, true},
		{"millon with accent", "2.5 millón", 2_500_000, true},
		{"mill no space", "3mill", 3_000_000, true},
		{"mil", "500 mil pesos", 500_000, true},
		{"thousands commas", "1,250,000", 1_250_000, true},
		{"commas with mil", "1,500 mil", 1_500_000, true},
		{"uppercase", "10 MILLONES", 10_000_000, true},
		{"first number", "aprox 42.5 km y 3 puentes", 42.5, true},
		{"currency ignored", "$ 900", 900, true},
		{"int passthrough", 7, 7, true},
		{"int64 passthrough", int64(12), 12, true},
		{"float passthrough", 3.25, 3.25, true},
		{"json number", json.Number("1e3"), 1000, true},
		{"nil", nil, 0, false},
		{"empty", "", 0, false},
		{"null", "null", 0, false},
		{"None", "None", 0, false},
		{"dash", " - ", 0, false},
		{"no digits", "sin dato", 0, false},
		{"bool", true, 0, false},
		{"slice", []any{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToNumber(tt.in)
			if ok != tt.ok {
				t.Fatalf("ToNumber(%v): expected ok=%v, got %v", tt.in, tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("ToNumber(%v): expected %v, got %v", tt.in, tt.want, got)
			}
		})
	}
}

func TestValue(t *testing.T) {
	if v := Value("null"); v != nil {
		t.Errorf("expected nil, got %v", v)
	}
	if v := Value("500 mil"); v != 500_000.0 {
		t.Errorf("expected 500000, got %v", v)
	}
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []string{"", "NULL", "none", "-", "  "} {
		if !IsSentinel(s) {
			t.Errorf("expected %q to be a sentinel", s)
		}
	}
	if IsSentinel("0") {
		t.Error("expected 0 not to be a sentinel")
	}
}
