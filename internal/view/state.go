// Package view holds the presentation-side picture of the station as built
// from bridge updates. The terminal UI renders it; headless mode just logs
// it.
package view

import (
	"slices"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/bridge"
)

type SessionInfo struct {
	ID         string
	Name       string
	DeviceType string
}

// State is owned by one goroutine; it is not safe for concurrent use.
type State struct {
	Sessions []SessionInfo
	Selected string

	Algorithms []string
	Algorithm  string
	Params     []bridge.ParamValue
	Flags      bridge.FlagsUpdated
	Log        []string
	Result     algorithm.Result
	Above      string
	Below      string

	// LastField is the most recent GetField answer.
	LastField *bridge.FieldValue
}

// Apply folds one update into the state. Updates about a session other than
// the selected one are dropped; they are left over from before a selection
// change. It reports whether anything changed.
func (s *State) Apply(u bridge.Update) bool {
	switch u := u.(type) {
	case bridge.SessionAdded:
		if s.index(u.ID) >= 0 {
			return false
		}
		s.Sessions = append(s.Sessions, SessionInfo{ID: u.ID, Name: u.Name, DeviceType: u.DeviceType})
		return true
	case bridge.SessionRemoved:
		i := s.index(u.ID)
		if i < 0 {
			return false
		}
		s.Sessions = slices.Delete(s.Sessions, i, i+1)
		if s.Selected == u.ID {
			s.Select("")
		}
		return true
	case bridge.FieldValue:
		s.LastField = &u
		return true
	}

	if id := updateID(u); id == "" || id != s.Selected {
		return false
	}
	switch u := u.(type) {
	case bridge.LogUpdated:
		s.Log = u.Lines
	case bridge.ResultUpdated:
		s.Result, s.Above, s.Below = u.Result, u.Above, u.Below
	case bridge.ParamsUpdated:
		s.Params = u.Params
	case bridge.AlgorithmsUpdated:
		s.Algorithms, s.Algorithm = u.Names, u.Current
	case bridge.FlagsUpdated:
		s.Flags = u
	default:
		return false
	}
	return true
}

// Select switches the local selection and forgets the previous session's
// details. The caller still has to send bridge.SelectSession.
func (s *State) Select(id string) {
	*s = State{Sessions: s.Sessions, Selected: id}
}

// SelectedInfo returns the selected session, if any.
func (s *State) SelectedInfo() (SessionInfo, bool) {
	if i := s.index(s.Selected); i >= 0 {
		return s.Sessions[i], true
	}
	return SessionInfo{}, false
}

// NextAlgorithm returns the catalog entry after the current one, wrapping.
func (s *State) NextAlgorithm() string {
	return cycle(s.Algorithms, s.Algorithm, 1)
}

// NextArtifact returns the result artifact after current, wrapping.
func (s *State) NextArtifact(current string) string {
	return cycle(s.Result.Names(), current, 1)
}

func (s *State) index(id string) int {
	return slices.IndexFunc(s.Sessions, func(si SessionInfo) bool { return si.ID == id })
}

func cycle(items []string, current string, step int) string {
	if len(items) == 0 {
		return ""
	}
	i := slices.Index(items, current)
	if i < 0 {
		return items[0]
	}
	return items[(i+step+len(items))%len(items)]
}

func updateID(u bridge.Update) string {
	switch u := u.(type) {
	case bridge.LogUpdated:
		return u.ID
	case bridge.ResultUpdated:
		return u.ID
	case bridge.ParamsUpdated:
		return u.ID
	case bridge.AlgorithmsUpdated:
		return u.ID
	case bridge.FlagsUpdated:
		return u.ID
	}
	return ""
}
