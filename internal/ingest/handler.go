// Package ingest turns instrument frames into session registrations and
// data updates.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bearing-monitor/station/internal/adapter"
	"github.com/bearing-monitor/station/internal/session"
)

var ErrInvalidMessage = errors.New("invalid message")

type Handler struct {
	reg            *session.Registry
	adapters       *adapter.Registry
	backendDefault bool
	log            *slog.Logger
}

type Option func(*Handler)

// WithBackendDefault sets BackendCalculation on new sessions.
func WithBackendDefault(on bool) Option {
	return func(h *Handler) { h.backendDefault = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func NewHandler(reg *session.Registry, adapters *adapter.Registry, opts ...Option) *Handler {
	h := &Handler{reg: reg, adapters: adapters, log: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	h.log = h.log.With("component", "ingest")
	return h
}

// HandleMessage processes one frame from connection connID. The first valid
// frame of a connection registers a session with the connection id; later
// frames replace its data.
func (h *Handler) HandleMessage(connID string, raw []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg == nil {
		return fmt.Errorf("%w: frame is not an object", ErrInvalidMessage)
	}

	if s, err := h.reg.Get(connID); err == nil {
		return h.update(s, msg)
	}
	return h.register(connID, msg)
}

func (h *Handler) update(s *session.Session, msg map[string]any) error {
	ad, err := h.adapters.Lookup(s.DeviceType)
	if err != nil {
		return err
	}
	data, err := ad.Normalize(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return h.reg.SetFields(s.ID, session.Assign(session.FieldData, data))
}

func (h *Handler) register(connID string, msg map[string]any) error {
	deviceType, _ := msg["device_type"].(string)
	if deviceType == "" {
		return fmt.Errorf("%w: device_type is required", ErrInvalidMessage)
	}
	ad, err := h.adapters.Lookup(deviceType)
	if err != nil {
		return err
	}
	data, err := ad.Normalize(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	factory := ad.Factory()
	names := factory.Names()
	if len(names) == 0 {
		return fmt.Errorf("device type %s has no algorithms", deviceType)
	}
	alg, err := factory.Algorithm(names[0])
	if err != nil {
		return err
	}

	name, _ := msg["device_name"].(string)
	if name == "" {
		name = connID
	}
	if _, err := h.reg.Add(session.Init{
		ID:                 connID,
		Name:               name,
		DeviceType:         deviceType,
		Factory:            factory,
		AlgorithmName:      names[0],
		Algorithm:          alg,
		Params:             alg.DefaultParams(),
		BackendCalculation: h.backendDefault,
	}); err != nil {
		return err
	}
	h.log.Info("instrument registered", "session_id", connID, "device_type", deviceType, "algorithm", names[0])
	return h.reg.SetFields(connID, session.Assign(session.FieldData, data))
}

// HandleClose drops the session of a closed connection. Connections that
// never sent a valid frame have none.
func (h *Handler) HandleClose(connID string) error {
	err := h.reg.Remove(connID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err == nil {
		h.log.Info("instrument disconnected", "session_id", connID)
	}
	return err
}
