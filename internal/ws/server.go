// Package ws is the instrument-facing transport: a websocket endpoint that
// feeds frames to the station, plus a small HTTP API for inspection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/bearing-monitor/station/internal/config"
	"github.com/bearing-monitor/station/internal/engine"
	"github.com/bearing-monitor/station/internal/session"
)

const maxFrameBytes = 1 << 20

// Handler consumes instrument traffic. HandleFrame may block until the frame
// has been processed; its error is reported back on the same connection.
type Handler interface {
	HandleFrame(connID string, data []byte) error
	HandleClose(connID string)
}

// Inventory lists connected instruments.
type Inventory interface {
	All() []*session.Session
	Len() int
}

// EngineStats reports execution counters for /api/health.
type EngineStats interface {
	Stats() engine.Stats
}

type Server struct {
	cfg            config.ServerConfig
	handler        Handler
	sessions       Inventory
	engine         EngineStats
	metrics        http.Handler
	hub            *Hub
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	proc           *process.Process
	log            *slog.Logger
}

type Option func(*Server)

func WithEngine(e EngineStats) Option {
	return func(s *Server) { s.engine = e }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func NewServer(cfg config.ServerConfig, handler Handler, sessions Inventory, opts ...Option) *Server {
	s := &Server{
		cfg:            cfg,
		handler:        handler,
		sessions:       sessions,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "ws")
	s.hub = NewHub(cfg.MaxConnections, s.log)

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	} else {
		s.log.Warn("process stats unavailable", "error", err)
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// SetupRoutes registers the websocket endpoint and the HTTP API on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.wsPath(), s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
}

// Handler returns all routes wrapped with the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func (s *Server) wsPath() string {
	if s.cfg.Path == "" {
		return "/ws"
	}
	return s.cfg.Path
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "error", err)
		return
	}

	id := uuid.NewString()
	if err := s.hub.Add(id, conn); err != nil {
		s.log.Warn("ws connection rejected", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	log := s.log.With("conn_id", id, "remote", r.RemoteAddr)
	log.Info("instrument connected")

	go s.readLoop(id, conn, log)
}

func (s *Server) readLoop(id string, conn *websocket.Conn, log *slog.Logger) {
	defer func() {
		s.handler.HandleClose(id)
		s.hub.Remove(id)
		log.Info("instrument disconnected")
	}()
	conn.SetReadLimit(maxFrameBytes)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			s.hub.Send(id, WSMessage{Type: MsgError, Payload: ErrorPayload{Error: "frame is not text"}})
			continue
		}
		if err := s.handler.HandleFrame(id, data); err != nil {
			log.Warn("frame rejected", "error", err)
			s.hub.Send(id, WSMessage{Type: MsgError, Payload: ErrorPayload{Error: err.Error()}})
		}
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	all := s.sessions.All()
	out := make([]SessionSummary, 0, len(all))
	for _, sess := range all {
		out = append(out, summarize(sess))
	}
	writeJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := HealthPayload{
		Status:      "ok",
		Instruments: s.sessions.Len(),
		Connections: s.hub.Count(),
		Process: ProcessHealth{
			PID:        int32(os.Getpid()),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if s.engine != nil {
		st := s.engine.Stats()
		h.Engine = &st
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			h.Process.RSSBytes = mem.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			h.Process.CPUPercent = cpu
		}
	}
	writeJSON(w, h)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// checkOrigin admits non-browser clients (no Origin header), configured
// origins, and otherwise only same-host or loopback pages.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	if len(s.allowedOrigins) > 0 {
		return s.allowedOrigins[origin] || s.allowedHosts[parsed.Host]
	}

	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx ends, then shuts down and drops every
// instrument connection.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr, "path", s.wsPath())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.CloseAll()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
