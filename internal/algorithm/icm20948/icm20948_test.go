package icm20948

import (
	"errors"
	"math"
	"testing"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineData(n int, cycles float64) algorithm.Data {
	raw := make([]float64, n)
	for i := range raw {
		v := int32(0.5 * fullScale * math.Sin(2*math.Pi*cycles*float64(i)/float64(n)))
		raw[i] = float64(uint32(v))
	}
	return algorithm.Data{
		Cfg:    map[string]any{"accelerate_range": 2.0, "sample_rate": 64.0, "sample_dots": float64(n)},
		Values: map[string]any{"data": raw},
	}
}

func TestStatistics(t *testing.T) {
	alg, err := NewFactory().Algorithm("Statistics")
	require.NoError(t, err)

	r, err := alg.Solve(sineData(64, 4), alg.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"waveform", "smoothed"}, r.Names())

	wave := r.Artifacts["waveform"].Values
	require.Len(t, wave, 64)
	peak := 0.0
	for _, v := range wave {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.InDelta(t, 1.0, peak, 0.01)
	assert.Contains(t, r.Summary, "RMS 0.70")
}

func TestSpectrumFindsDominantBin(t *testing.T) {
	alg, err := NewFactory().Algorithm("Spectrum")
	require.NoError(t, err)

	r, err := alg.Solve(sineData(64, 4), alg.DefaultParams())
	require.NoError(t, err)
	assert.Len(t, r.Artifacts["spectrum"].Values, 33)
	assert.Contains(t, r.Summary, "dominant bin 4 (4.0 Hz)")
}

func TestSolveWithoutSamples(t *testing.T) {
	alg, err := NewFactory().Algorithm("Statistics")
	require.NoError(t, err)

	_, err = alg.Solve(algorithm.Data{}, alg.DefaultParams())
	var ae *algorithm.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Statistics", ae.Algorithm)
}

func TestMovingAverage(t *testing.T) {
	got := movingAverage([]float64{1, 2, 3, 4}, 2)
	assert.Equal(t, []float64{1, 1.5, 2.5, 3.5}, got)
}
