package main

import (
	"testing"

	"github.com/bearing-monitor/station/internal/config"
)

func TestMockURL(t *testing.T) {
	tests := []struct {
		cfg  config.ServerConfig
		want string
	}{
		{config.ServerConfig{Host: "0.0.0.0", Port: 8765, Path: "/ws"}, "ws://127.0.0.1:8765/ws"},
		{config.ServerConfig{Host: "station.lab", Port: 2333}, "ws://station.lab:2333/ws"},
		{config.ServerConfig{Host: "::1", Port: 9000, Path: "/in"}, "ws://[::1]:9000/in"},
	}
	for _, tt := range tests {
		if got := mockURL(tt.cfg); got != tt.want {
			t.Errorf("mockURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "port", "headless", "mock", "backend", "log-level"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
	if err := cmd.Flags().Parse([]string{"--port", "9000", "--headless"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 9000 {
		t.Errorf("port = %d", v)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	err := run(t.Context(), options{configPath: "", logLevel: "loud", headless: true}, false)
	if err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}
