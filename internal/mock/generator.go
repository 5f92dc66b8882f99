// Package mock simulates instruments: each device dials the station's
// websocket endpoint and streams frames at a fixed interval.
package mock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	icmSampleRate = 1000
	icmSampleDots = 256
	icmRange      = 4
)

// Generator runs a fleet of simulated instruments.
type Generator struct {
	url        string
	devices    int
	interval   time.Duration
	deviceType string
	log        *slog.Logger
	dialer     *websocket.Dialer
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// NewGenerator simulates devices instruments of deviceType ("Test" or
// "ICM20948") sending to url every interval.
func NewGenerator(url string, devices int, interval time.Duration, deviceType string, opts ...Option) *Generator {
	g := &Generator{
		url:        url,
		devices:    devices,
		interval:   interval,
		deviceType: deviceType,
		log:        slog.Default(),
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "mock")
	return g
}

// Run blocks until ctx ends. Each device redials after a lost connection.
func (g *Generator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range g.devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.device(ctx, fmt.Sprintf("mock-%s-%d", g.deviceType, i+1))
		}()
	}
	wg.Wait()
}

func (g *Generator) device(ctx context.Context, name string) {
	log := g.log.With("device", name)
	backoff := g.interval
	for ctx.Err() == nil {
		err := g.stream(ctx, name)
		if ctx.Err() != nil {
			return
		}
		log.Warn("mock device disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (g *Generator) stream(ctx context.Context, name string) error {
	conn, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			g.log.Warn("station rejected frame", "device", name, "reply", string(data))
		}
	}()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		frame, err := json.Marshal(g.frame(name, tick))
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			if err == nil {
				err = errors.New("connection closed")
			}
			return err
		case <-ticker.C:
		}
	}
}

// frame builds the tick-th message for one device.
func (g *Generator) frame(name string, tick int) map[string]any {
	switch g.deviceType {
	case "ICM20948":
		return map[string]any{
			"device_type":     g.deviceType,
			"device_name":     name,
			"acc_range":       icmRange,
			"acc_sample_rate": icmSampleRate,
			"acc_sample_dots": icmSampleDots,
			"data":            vibration(tick, icmSampleDots),
		}
	default:
		return map[string]any{
			"device_type": g.deviceType,
			"device_name": name,
			"cfg":         map[string]any{"a": 1, "b": 2},
			"data":        tick,
		}
	}
}

// vibration encodes n samples of a noisy shaft tone, with a defect harmonic
// that grows with tick, as little-endian uint32 words in hex.
func vibration(tick, n int) string {
	defect := math.Min(float64(tick)/100, 1)
	buf := make([]byte, 4*n)
	for i := range n {
		t := float64(i) / icmSampleRate
		v := math.Sin(2*math.Pi*30*t) +
			defect*0.5*math.Sin(2*math.Pi*157*t) +
			0.1*rand.NormFloat64()
		word := uint32(math.Max(0, 32768+8192*v))
		binary.LittleEndian.PutUint32(buf[4*i:], word)
	}
	return hex.EncodeToString(buf)
}
