// Package testdevice is the algorithm catalog for the "Test" device family:
// synthetic algorithms used to exercise the station end to end.
package testdevice

import (
	"fmt"
	"math"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

const points = 32

// NewFactory returns the Test device catalog: Test01, Test02.
func NewFactory() algorithm.Factory {
	return algorithm.NewCatalog(
		algorithm.Entry{Name: "Test01", New: func() algorithm.Algorithm { return test01{} }},
		algorithm.Entry{Name: "Test02", New: func() algorithm.Algorithm { return test02{} }},
	)
}

func percent() param.Range { return param.Range{Min: 0, Max: 100} }

var labels = param.OneOf{"test", "test2"}

type test01 struct{}

func (test01) DefaultParams() *param.Set {
	return param.NewSet(
		param.MustNew("param1", param.Int, 10, percent(), param.Step{Step: 10}),
		param.MustNew("param2", param.Float, 20.0, percent()),
		param.MustNew("param3", param.String, "test", labels),
	)
}

func (test01) Solve(data algorithm.Data, params *param.Set) (algorithm.Result, error) {
	if err := algorithm.RequireSet("Test01", params); err != nil {
		return algorithm.Result{}, err
	}
	x := sample(data)
	p1 := float64(params.Value("param1").(int))
	p2 := params.Value("param2").(float64)

	return algorithm.NewResult(
		fmt.Sprintf("Test algorithm 01, P1: %v, P2: %v, P3: %v, sample: %v",
			params.Value("param1"), params.Value("param2"), params.Value("param3"), x),
		algorithm.NamedArtifact{Name: "figure1", Artifact: algorithm.Artifact{
			Title:  "Figure 1",
			Values: ramp(x, p1),
		}},
		algorithm.NamedArtifact{Name: "figure2", Artifact: algorithm.Artifact{
			Title:  "Figure 2",
			Values: sine(x, p2),
		}},
	), nil
}

type test02 struct{}

func (test02) DefaultParams() *param.Set {
	return param.NewSet(
		param.MustNew("param4", param.Int, 10, percent()),
		param.MustNew("param5", param.Int, 20, percent(), param.Step{Step: 10}),
		param.MustNew("param6", param.String, "test", labels),
	)
}

func (test02) Solve(data algorithm.Data, params *param.Set) (algorithm.Result, error) {
	if err := algorithm.RequireSet("Test02", params); err != nil {
		return algorithm.Result{}, err
	}
	x := sample(data)
	p4 := float64(params.Value("param4").(int))
	p5 := float64(params.Value("param5").(int))

	return algorithm.NewResult(
		fmt.Sprintf("Test algorithm 02, P4: %v, P5: %v, P6: %v, sample: %v",
			params.Value("param4"), params.Value("param5"), params.Value("param6"), x),
		algorithm.NamedArtifact{Name: "figure3", Artifact: algorithm.Artifact{
			Title:  "Figure 3",
			Values: sine(x, p4),
		}},
		algorithm.NamedArtifact{Name: "figure4", Artifact: algorithm.Artifact{
			Title:  "Figure 4",
			Values: ramp(x, p5),
		}},
	), nil
}

// sample extracts the scalar the Test adapter stores under "data".
func sample(d algorithm.Data) float64 {
	switch v := d.Values["data"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func ramp(offset, slope float64) []float64 {
	out := make([]float64, points)
	for i := range out {
		out[i] = offset + slope*float64(i)/points
	}
	return out
}

func sine(phase, amplitude float64) []float64 {
	out := make([]float64, points)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*float64(i)/points+phase)
	}
	return out
}
