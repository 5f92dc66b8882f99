package adapter

import "github.com/bearing-monitor/station/internal/algorithm"

// Test passes "cfg" and "data" through unchanged. It backs the synthetic Test
// device used by the simulator.
type Test struct {
	factory algorithm.Factory
}

func (t Test) Normalize(msg map[string]any) (algorithm.Data, error) {
	cfg, ok := msg["cfg"].(map[string]any)
	if !ok {
		return algorithm.Data{}, invalid("cfg must be an object")
	}
	v, ok := msg["data"]
	if !ok {
		return algorithm.Data{}, invalid("data is required")
	}
	return algorithm.Data{Cfg: cfg, Values: map[string]any{"data": v}}, nil
}

func (t Test) Factory() algorithm.Factory { return t.factory }
