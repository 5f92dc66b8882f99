package engine

import (
	"fmt"

	"github.com/bearing-monitor/station/internal/session"
)

// Observers returns the engine's session observers, in the order they
// should be attached: algorithm swap, run trigger, flag catch-up.
func (e *Engine) Observers() []session.Observer {
	return []session.Observer{
		{
			Name: "engine.swap",
			When: session.OnFields(session.FieldAlgorithmName),
			Do:   func(s *session.Session, _ session.Field) { e.swap(s) },
		},
		{
			Name: "engine.trigger",
			When: session.OnFields(session.FieldAlgorithm, session.FieldData, session.FieldParams),
			Do:   func(s *session.Session, _ session.Field) { e.Trigger(s) },
		},
		{
			Name: "engine.flags",
			When: session.OnFields(session.FieldStopCalculation, session.FieldBackendCalculation),
			Do: func(s *session.Session, _ session.Field) {
				if err := e.Recompute(s.ID); err != nil {
					e.log.Debug("flag catch-up", "session_id", s.ID, "error", err)
				}
			},
		},
	}
}

// swap binds the algorithm named by the session. The new defaults are
// installed while algorithmChanging is set so they do not start a run of
// their own; publishing the new instance does.
func (e *Engine) swap(s *session.Session) {
	if s.Factory == nil {
		_ = e.reg.Log(s.ID, session.Error, "No algorithm catalog bound.")
		return
	}
	alg, err := s.Factory.Algorithm(s.AlgorithmName)
	if err != nil {
		_ = e.reg.Log(s.ID, session.Error, fmt.Sprintf("Cannot switch to %s: %v", s.AlgorithmName, err))
		return
	}
	err = e.reg.SetFields(s.ID,
		session.Assign(session.FieldAlgorithmChanging, true),
		session.Assign(session.FieldParams, alg.DefaultParams()),
		session.Assign(session.FieldAlgorithmChanging, false),
		session.Assign(session.FieldAlgorithm, alg),
	)
	if err != nil {
		e.log.Error("algorithm swap", "session_id", s.ID, "error", err)
		return
	}
	e.log.Info("algorithm switched", "session_id", s.ID, "algorithm", s.AlgorithmName)
}
