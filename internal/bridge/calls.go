package bridge

import (
	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

// Update is a message from the compute side to the presentation side. The
// set is closed: only the types in this file implement it.
type Update interface {
	Kind() string
	isUpdate()
}

// Command is a message from the presentation side to the compute side.
type Command interface {
	Kind() string
	isCommand()
}

type SessionAdded struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"deviceType"`
}

type SessionRemoved struct {
	ID string `json:"id"`
}

// LogUpdated carries the full bounded log of the selected session.
type LogUpdated struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines"`
}

// ResultUpdated carries a new result and the artifact names chosen for the
// two plot areas.
type ResultUpdated struct {
	ID     string           `json:"id"`
	Result algorithm.Result `json:"result"`
	Above  string           `json:"above"`
	Below  string           `json:"below"`
}

type ParamsUpdated struct {
	ID     string       `json:"id"`
	Params []ParamValue `json:"params"`
}

type AlgorithmsUpdated struct {
	ID      string   `json:"id"`
	Names   []string `json:"names"`
	Current string   `json:"current"`
}

type FlagsUpdated struct {
	ID         string `json:"id"`
	Stop       bool   `json:"stop"`
	Backend    bool   `json:"backend"`
	NeedUpdate bool   `json:"needUpdate"`
}

// FieldValue answers a GetField command.
type FieldValue struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (SessionAdded) Kind() string      { return "session_added" }
func (SessionRemoved) Kind() string    { return "session_removed" }
func (LogUpdated) Kind() string        { return "log_updated" }
func (ResultUpdated) Kind() string     { return "result_updated" }
func (ParamsUpdated) Kind() string     { return "params_updated" }
func (AlgorithmsUpdated) Kind() string { return "algorithms_updated" }
func (FlagsUpdated) Kind() string      { return "flags_updated" }
func (FieldValue) Kind() string        { return "field_value" }

func (SessionAdded) isUpdate()      {}
func (SessionRemoved) isUpdate()    {}
func (LogUpdated) isUpdate()        {}
func (ResultUpdated) isUpdate()     {}
func (ParamsUpdated) isUpdate()     {}
func (AlgorithmsUpdated) isUpdate() {}
func (FlagsUpdated) isUpdate()      {}
func (FieldValue) isUpdate()        {}

// ParamValue is the text form of one parameter, as shown in a form.
type ParamValue struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParamValues renders a parameter set in declaration order.
func ParamValues(ps *param.Set) []ParamValue {
	if ps == nil {
		return nil
	}
	out := make([]ParamValue, 0, ps.Len())
	for _, p := range ps.Params() {
		out = append(out, ParamValue{Name: p.Name(), Type: p.Type().Name(), Text: p.Text()})
	}
	return out
}

// SelectSession makes ID the session the presentation side shows. An empty
// ID clears the selection.
type SelectSession struct {
	ID string `json:"id"`
}

type GetField struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

type SetField struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

type SetSelectedField struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// SetParam sets one parameter of a session from its text form.
type SetParam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type Recompute struct {
	ID string `json:"id"`
}

type RecomputeSelected struct{}

func (SelectSession) Kind() string     { return "select_session" }
func (GetField) Kind() string          { return "get_field" }
func (SetField) Kind() string          { return "set_field" }
func (SetSelectedField) Kind() string  { return "set_selected_field" }
func (SetParam) Kind() string          { return "set_param" }
func (Recompute) Kind() string         { return "recompute" }
func (RecomputeSelected) Kind() string { return "recompute_selected" }

func (SelectSession) isCommand()     {}
func (GetField) isCommand()          {}
func (SetField) isCommand()          {}
func (SetSelectedField) isCommand()  {}
func (SetParam) isCommand()          {}
func (Recompute) isCommand()         {}
func (RecomputeSelected) isCommand() {}

// ComputeSide and PresentationSide are the two ends the station and the
// user interface hold.
type (
	ComputeSide      = Conn[Update, Command]
	PresentationSide = Conn[Command, Update]
)

// New returns a connected compute/presentation pair.
func New() (*ComputeSide, *PresentationSide) {
	return NewPair[Update, Command]()
}
