// Package icm20948 is the algorithm catalog for ICM-20948 accelerometer
// instruments.
package icm20948

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

// fullScale is the raw sample value that maps to the configured range.
const fullScale = 1 << 31

// NewFactory returns the ICM-20948 catalog: Statistics, Spectrum.
func NewFactory() algorithm.Factory {
	return algorithm.NewCatalog(
		algorithm.Entry{Name: "Statistics", New: func() algorithm.Algorithm { return statistics{} }},
		algorithm.Entry{Name: "Spectrum", New: func() algorithm.Algorithm { return spectrum{} }},
	)
}

type statistics struct{}

// param1 is the moving-average window, param2 the peak threshold in percent
// of full scale.
func (statistics) DefaultParams() *param.Set {
	pct := param.Range{Min: 0, Max: 100}
	return param.NewSet(
		param.MustNew("param1", param.Int, 10, pct),
		param.MustNew("param2", param.Int, 20, pct, param.Step{Step: 10}),
	)
}

func (statistics) Solve(data algorithm.Data, params *param.Set) (algorithm.Result, error) {
	if err := algorithm.RequireSet("Statistics", params); err != nil {
		return algorithm.Result{}, err
	}
	wave, rng, err := waveform(data)
	if err != nil {
		return algorithm.Result{}, &algorithm.Error{Algorithm: "Statistics", Cause: err}
	}
	window := params.Value("param1").(int)
	threshold := float64(params.Value("param2").(int)) / 100 * rng

	var sum, peak float64
	var over int
	for _, v := range wave {
		sum += v * v
		peak = math.Max(peak, math.Abs(v))
		if math.Abs(v) > threshold {
			over++
		}
	}
	rms := 0.0
	if len(wave) > 0 {
		rms = math.Sqrt(sum / float64(len(wave)))
	}

	return algorithm.NewResult(
		fmt.Sprintf("RMS %.4f g, peak %.4f g, %d/%d samples above %.2f g", rms, peak, over, len(wave), threshold),
		algorithm.NamedArtifact{Name: "waveform", Artifact: algorithm.Artifact{Title: "Acceleration (g)", Values: wave}},
		algorithm.NamedArtifact{Name: "smoothed", Artifact: algorithm.Artifact{Title: "Moving average (g)", Values: movingAverage(wave, window)}},
	), nil
}

type spectrum struct{}

func (spectrum) DefaultParams() *param.Set {
	return param.NewSet(
		param.MustNew("window", param.Int, 64, param.OneOf{16, 32, 64, 128}),
		param.MustNew("scale", param.Float, 1.0, param.Range{Min: 0, Max: 16, LeftOpen: true}),
	)
}

func (spectrum) Solve(data algorithm.Data, params *param.Set) (algorithm.Result, error) {
	if err := algorithm.RequireSet("Spectrum", params); err != nil {
		return algorithm.Result{}, err
	}
	wave, _, err := waveform(data)
	if err != nil {
		return algorithm.Result{}, &algorithm.Error{Algorithm: "Spectrum", Cause: err}
	}
	n := params.Value("window").(int)
	if len(wave) < n {
		n = len(wave)
	}
	scale := params.Value("scale").(float64)
	mags := dft(wave[len(wave)-n:], scale)

	rate, _ := number(data.Cfg["sample_rate"])
	dominant, bin := 0.0, 0
	for i, m := range mags {
		if i > 0 && m > dominant {
			dominant, bin = m, i
		}
	}
	freq := 0.0
	if n > 0 {
		freq = float64(bin) * rate / float64(n)
	}

	return algorithm.NewResult(
		fmt.Sprintf("dominant bin %d (%.1f Hz), magnitude %.4f over %d samples", bin, freq, dominant, n),
		algorithm.NamedArtifact{Name: "spectrum", Artifact: algorithm.Artifact{Title: "Magnitude spectrum", Values: mags}},
	), nil
}

// waveform converts raw samples into g using the configured range.
func waveform(data algorithm.Data) ([]float64, float64, error) {
	raw, ok := data.Values["data"].([]float64)
	if !ok {
		return nil, 0, errors.New("missing sample data")
	}
	rng, ok := number(data.Cfg["accelerate_range"])
	if !ok || rng <= 0 {
		return nil, 0, errors.New("missing accelerate_range")
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		// Samples arrive as unsigned 32-bit words; reinterpret as signed.
		out[i] = float64(int32(uint32(v))) / fullScale * rng
	}
	return out, rng, nil
}

func movingAverage(in []float64, window int) []float64 {
	if window <= 1 {
		return append([]float64(nil), in...)
	}
	out := make([]float64, len(in))
	var acc float64
	for i, v := range in {
		acc += v
		if i >= window {
			acc -= in[i-window]
		}
		out[i] = acc / float64(min(i+1, window))
	}
	return out
}

// dft returns the one-sided magnitude spectrum. Windows are small (≤128) so
// the quadratic transform is fine.
func dft(in []float64, scale float64) []float64 {
	n := len(in)
	out := make([]float64, n/2+1)
	for k := range out {
		var sum complex128
		for t, v := range in {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += complex(v, 0) * cmplx.Exp(complex(0, angle))
		}
		out[k] = cmplx.Abs(sum) / float64(n) * scale
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
