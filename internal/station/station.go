// Package station runs the compute side: one loop goroutine that owns every
// session mutation. Instrument frames, finished runs and presentation
// commands all enter through it.
package station

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/engine"
	"github.com/bearing-monitor/station/internal/ingest"
	"github.com/bearing-monitor/station/internal/session"
)

var ErrStopped = errors.New("station stopped")

type inbound struct {
	connID string
	data   []byte
	closed bool
	reply  chan error
}

type Station struct {
	reg    *session.Registry
	eng    *engine.Engine
	ingest *ingest.Handler
	ui     *bridge.ComputeSide
	log    *slog.Logger

	inbound chan inbound
	done    chan struct{}
}

type Option func(*Station)

func WithLogger(l *slog.Logger) Option {
	return func(s *Station) { s.log = l }
}

// New wires the registry observers and hooks. The engine observers run
// before the presentation forwarders.
func New(reg *session.Registry, eng *engine.Engine, ing *ingest.Handler, ui *bridge.ComputeSide, opts ...Option) *Station {
	s := &Station{
		reg:     reg,
		eng:     eng,
		ingest:  ing,
		ui:      ui,
		log:     slog.Default(),
		inbound: make(chan inbound, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "station")

	reg.SetDefaultObservers(append(eng.Observers(), s.forwarders()...)...)
	reg.SetAddHook(s.onAdd)
	reg.SetRemoveHook(s.onRemove)
	return s
}

// Run processes events until ctx is cancelled.
func (s *Station) Run(ctx context.Context) error {
	defer close(s.done)
	s.log.Info("station loop started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("station loop stopped")
			return ctx.Err()
		case ev := <-s.inbound:
			s.handleInbound(ev)
		case c := <-s.eng.Completions():
			s.eng.Complete(c)
		case <-s.ui.Ready():
			s.drainCommands()
		}
	}
}

// HandleFrame hands a frame from an instrument connection to the loop and
// waits for it to be processed. It is safe to call from any goroutine.
func (s *Station) HandleFrame(connID string, data []byte) error {
	reply := make(chan error, 1)
	select {
	case s.inbound <- inbound{connID: connID, data: data, reply: reply}:
	case <-s.done:
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrStopped
	}
}

// HandleClose tells the loop that a connection went away.
func (s *Station) HandleClose(connID string) {
	select {
	case s.inbound <- inbound{connID: connID, closed: true}:
	case <-s.done:
	}
}

func (s *Station) handleInbound(ev inbound) {
	if ev.closed {
		if err := s.ingest.HandleClose(ev.connID); err != nil {
			s.log.Error("close connection", "conn_id", ev.connID, "error", err)
		}
		return
	}
	err := s.ingest.HandleMessage(ev.connID, ev.data)
	if err != nil {
		s.log.Warn("frame rejected", "conn_id", ev.connID, "error", err)
	}
	if ev.reply != nil {
		ev.reply <- err
	}
}

func (s *Station) drainCommands() {
	for {
		cmd, ok := s.ui.TryRecv()
		if !ok {
			return
		}
		s.dispatch(cmd)
	}
}

func (s *Station) send(u bridge.Update) {
	if err := s.ui.Send(u); err != nil {
		s.log.Debug("presentation gone", "update", u.Kind(), "error", err)
	}
}
