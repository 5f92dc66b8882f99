package adapter

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bearing-monitor/station/internal/algorithm"
)

// ICM20948 decodes accelerometer frames: range, sample rate and sample count
// in the header fields, samples as a hex string of little-endian uint32 words.
type ICM20948 struct {
	factory algorithm.Factory
}

func (a ICM20948) Normalize(msg map[string]any) (algorithm.Data, error) {
	cfg := make(map[string]any, 3)
	for src, dst := range map[string]string{
		"acc_range":       "accelerate_range",
		"acc_sample_rate": "sample_rate",
		"acc_sample_dots": "sample_dots",
	} {
		v, ok := msg[src].(float64)
		if !ok {
			return algorithm.Data{}, invalid("%s must be a number", src)
		}
		cfg[dst] = v
	}

	s, ok := msg["data"].(string)
	if !ok {
		return algorithm.Data{}, invalid("data must be a hex string")
	}
	samples, err := decodeSamples(s)
	if err != nil {
		return algorithm.Data{}, err
	}
	return algorithm.Data{Cfg: cfg, Values: map[string]any{"data": samples}}, nil
}

func (a ICM20948) Factory() algorithm.Factory { return a.factory }

func decodeSamples(s string) ([]float64, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, invalid("data: %v", err)
	}
	if len(raw)%4 != 0 {
		return nil, invalid("data length %d is not a multiple of 4 bytes", len(raw))
	}
	out := make([]float64, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		out = append(out, float64(binary.LittleEndian.Uint32(raw[i:i+4])))
	}
	return out, nil
}
