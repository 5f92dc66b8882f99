package tui

import (
	"math"
	"strings"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline draws values as one row of block glyphs, averaging them into at
// most width buckets. NaN and infinite values are skipped.
func sparkline(values []float64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	buckets := bucket(values, width)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range buckets {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return ""
	}

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range buckets {
		switch {
		case math.IsNaN(v):
			b.WriteRune(' ')
		case hi == lo:
			b.WriteRune(sparkBlocks[top/2])
		default:
			b.WriteRune(sparkBlocks[int(math.Round((v-lo)/(hi-lo)*float64(top)))])
		}
	}
	return b.String()
}

// bucket averages values into n buckets, or returns the finite values
// unchanged when there are fewer than n. Empty buckets are NaN.
func bucket(values []float64, n int) []float64 {
	if len(values) <= n {
		out := make([]float64, len(values))
		for i, v := range values {
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			out[i] = v
		}
		return out
	}
	out := make([]float64, n)
	for i := range out {
		from := i * len(values) / n
		to := (i + 1) * len(values) / n
		sum, count := 0.0, 0
		for _, v := range values[from:to] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += v
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}
