package tui

import (
	"math"
	"testing"
	"unicode/utf8"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"zero width", []float64{1}, 0, ""},
		{"ramp", []float64{0, 1, 2, 3, 4, 5, 6, 7}, 10, "▁▂▃▄▅▆▇█"},
		{"flat", []float64{2, 2, 2}, 10, "▄▄▄"},
		{"nan gap", []float64{0, math.NaN(), 7}, 10, "▁ █"},
		{"all nan", []float64{math.NaN()}, 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sparkline(tt.values, tt.width); got != tt.want {
				t.Errorf("sparkline(%v, %d) = %q, want %q", tt.values, tt.width, got, tt.want)
			}
		})
	}
}

func TestSparklineDownsamples(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	got := sparkline(values, 20)
	if n := utf8.RuneCountInString(got); n != 20 {
		t.Fatalf("width = %d, want 20", n)
	}
	r := []rune(got)
	if r[0] != '▁' || r[19] != '█' {
		t.Errorf("sparkline = %q, want rising from ▁ to █", got)
	}
}
