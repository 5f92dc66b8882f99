package station

import (
	"fmt"
	"slices"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/param"
	"github.com/bearing-monitor/station/internal/session"
)

func (s *Station) dispatch(cmd bridge.Command) {
	log := s.log.With("command", cmd.Kind())
	var err error
	switch c := cmd.(type) {
	case bridge.SelectSession:
		err = s.selectSession(c.ID)
	case bridge.GetField:
		s.getField(c.ID, c.Field)
	case bridge.SetField:
		err = s.setField(c.ID, session.Field(c.Field), c.Value)
	case bridge.SetSelectedField:
		err = s.setField(s.eng.Selected(), session.Field(c.Field), c.Value)
	case bridge.SetParam:
		err = s.setParam(c.ID, c.Name, c.Text)
	case bridge.Recompute:
		err = s.recompute(c.ID)
	case bridge.RecomputeSelected:
		err = s.recompute(s.eng.Selected())
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}
	if err != nil {
		log.Warn("command failed", "error", err)
	}
}

// selectSession switches the presentation to id, pushes its current state
// and then runs any computation it owes.
func (s *Station) selectSession(id string) error {
	if id == "" {
		s.eng.Select("")
		return nil
	}
	if !s.reg.Exists(id) {
		s.eng.Select("")
		return fmt.Errorf("select %s: %w", id, session.ErrNotFound)
	}
	s.eng.Select(id)
	snap, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	s.push(snap)
	return s.eng.Recompute(id)
}

func (s *Station) getField(id, field string) {
	reply := bridge.FieldValue{ID: id, Field: field}
	v, err := s.reg.Field(id, session.Field(field))
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Value = presentable(v)
	}
	s.send(reply)
}

// presentable converts field values that are not plain data.
func presentable(v any) any {
	switch x := v.(type) {
	case *param.Set:
		return bridge.ParamValues(x)
	case algorithm.Factory:
		return x.Names()
	case algorithm.Algorithm:
		return fmt.Sprintf("%T", x)
	}
	return v
}

func (s *Station) setField(id string, f session.Field, v any) error {
	if id == "" {
		return fmt.Errorf("set %s: no session selected", f)
	}
	if f == session.FieldAlgorithmName {
		if err := s.checkAlgorithm(id, v); err != nil {
			_ = s.reg.Log(id, session.Error, err.Error())
			return err
		}
	}
	if err := s.reg.SetFields(id, session.Assign(f, v)); err != nil {
		_ = s.reg.Log(id, session.Error, err.Error())
		return err
	}
	return nil
}

// checkAlgorithm rejects names outside the session's catalog before the
// name is stored, so the bound algorithm and its name never disagree.
func (s *Station) checkAlgorithm(id string, v any) error {
	name, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: algorithm name must be a string", session.ErrFieldType)
	}
	snap, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if snap.Factory == nil || !slices.Contains(snap.Factory.Names(), name) {
		return fmt.Errorf("%w: %q", algorithm.ErrUnknownAlgorithm, name)
	}
	return nil
}

// setParam validates a parameter edit on a copy and publishes the copy as
// the new parameter set. A rejected edit leaves the session untouched.
func (s *Station) setParam(id, name, text string) error {
	snap, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if snap.Params == nil {
		return fmt.Errorf("session %s has no parameters", id)
	}
	ps := snap.Params
	if err := ps.SetText(name, text); err != nil {
		_ = s.reg.Log(id, session.Error, err.Error())
		return err
	}
	return s.reg.SetFields(id, session.Assign(session.FieldParams, ps))
}

// recompute asks for a run now, subject to the usual stop and selection
// rules.
func (s *Station) recompute(id string) error {
	if id == "" {
		return fmt.Errorf("recompute: no session selected")
	}
	if err := s.reg.SetFields(id, session.Assign(session.FieldNeedUpdate, true)); err != nil {
		return err
	}
	return s.eng.Recompute(id)
}
