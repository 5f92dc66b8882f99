package station

import (
	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/session"
)

// forwarders mirror the selected session to the presentation side.
func (s *Station) forwarders() []session.Observer {
	return []session.Observer{
		{
			Name: "forward.log",
			When: s.selected(session.FieldLog),
			Do:   func(snap *session.Session, _ session.Field) { s.send(logUpdate(snap)) },
		},
		{
			Name: "forward.algorithms",
			When: s.selected(session.FieldAlgorithmName),
			Do:   func(snap *session.Session, _ session.Field) { s.send(algorithmsUpdate(snap)) },
		},
		{
			Name: "forward.params",
			When: s.selected(session.FieldParams),
			Do:   func(snap *session.Session, _ session.Field) { s.send(paramsUpdate(snap)) },
		},
		{
			Name: "forward.flags",
			When: s.selected(session.FieldStopCalculation, session.FieldBackendCalculation, session.FieldNeedUpdate),
			Do:   func(snap *session.Session, _ session.Field) { s.send(flagsUpdate(snap)) },
		},
		{
			Name: "forward.result",
			When: s.selected(session.FieldResult, session.FieldAboveArtifact, session.FieldBelowArtifact),
			Do:   s.forwardResult,
		},
	}
}

// push sends the whole presentation state of a newly selected session.
func (s *Station) push(snap *session.Session) {
	s.send(algorithmsUpdate(snap))
	s.send(paramsUpdate(snap))
	s.send(flagsUpdate(snap))
	s.send(logUpdate(snap))
	s.forwardResult(snap, session.FieldResult)
}

func logUpdate(snap *session.Session) bridge.Update {
	return bridge.LogUpdated{ID: snap.ID, Lines: snap.Log}
}

func algorithmsUpdate(snap *session.Session) bridge.Update {
	var names []string
	if snap.Factory != nil {
		names = snap.Factory.Names()
	}
	return bridge.AlgorithmsUpdated{ID: snap.ID, Names: names, Current: snap.AlgorithmName}
}

func paramsUpdate(snap *session.Session) bridge.Update {
	return bridge.ParamsUpdated{ID: snap.ID, Params: bridge.ParamValues(snap.Params)}
}

func flagsUpdate(snap *session.Session) bridge.Update {
	return bridge.FlagsUpdated{
		ID:         snap.ID,
		Stop:       snap.StopCalculation,
		Backend:    snap.BackendCalculation,
		NeedUpdate: snap.NeedUpdate,
	}
}

// forwardResult sends the result once both plot selections name artifacts
// it contains. Invalid selections are repaired first; the repair notifies
// again and that notification does the sending.
func (s *Station) forwardResult(snap *session.Session, _ session.Field) {
	above := pickArtifact(snap.Result, snap.AboveArtifact)
	below := pickArtifact(snap.Result, snap.BelowArtifact)
	if above != snap.AboveArtifact || below != snap.BelowArtifact {
		err := s.reg.SetFields(snap.ID,
			session.Assign(session.FieldAboveArtifact, above),
			session.Assign(session.FieldBelowArtifact, below),
		)
		if err != nil {
			s.log.Debug("artifact selection", "session_id", snap.ID, "error", err)
		}
		return
	}
	s.send(bridge.ResultUpdated{ID: snap.ID, Result: snap.Result, Above: above, Below: below})
}

// pickArtifact keeps current when the result has it and otherwise falls
// back to the first artifact, or "" for an empty result.
func pickArtifact(r algorithm.Result, current string) string {
	if r.Has(current) {
		return current
	}
	if names := r.Names(); len(names) > 0 {
		return names[0]
	}
	return ""
}

func (s *Station) selected(fields ...session.Field) session.Predicate {
	on := session.OnFields(fields...)
	return func(snap *session.Session, f session.Field) bool {
		return snap.ID == s.eng.Selected() && on(snap, f)
	}
}

func (s *Station) onAdd(snap *session.Session) {
	s.log.Info("session added", "session_id", snap.ID, "name", snap.Name, "device_type", snap.DeviceType)
	s.send(bridge.SessionAdded{ID: snap.ID, Name: snap.Name, DeviceType: snap.DeviceType})
}

func (s *Station) onRemove(id string) {
	s.log.Info("session removed", "session_id", id)
	if s.eng.Selected() == id {
		s.eng.Select("")
	}
	s.send(bridge.SessionRemoved{ID: id})
}
