package view

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/bridge"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func recvCommand(t *testing.T, c *bridge.ComputeSide) bridge.Command {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd, err := c.Recv(ctx)
	if err != nil {
		t.Fatalf("waiting for command: %v", err)
	}
	return cmd
}

func TestHeadlessSelectsFirstSession(t *testing.T) {
	compute, ui := bridge.New()
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), ui, logger) }()

	compute.Send(bridge.SessionAdded{ID: "S1", Name: "rig-1", DeviceType: "Test"})
	if got := recvCommand(t, compute); got != (bridge.SelectSession{ID: "S1"}) {
		t.Fatalf("got %#v, want SelectSession S1", got)
	}

	compute.Send(bridge.SessionAdded{ID: "S2", Name: "rig-2", DeviceType: "Test"})
	compute.Send(bridge.ResultUpdated{ID: "S1", Result: algorithm.NewResult("all good")})
	compute.Send(bridge.SessionRemoved{ID: "S1"})
	if got := recvCommand(t, compute); got != (bridge.SelectSession{ID: "S2"}) {
		t.Fatalf("got %#v, want SelectSession S2", got)
	}

	compute.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after close")
	}

	out := buf.String()
	for _, want := range []string{"instrument connected", "all good", "instrument disconnected"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestHeadlessStopsOnContext(t *testing.T) {
	_, ui := bridge.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, ui, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
