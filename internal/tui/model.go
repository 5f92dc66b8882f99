// Package tui is the terminal presentation of the station. It runs on its
// own goroutine and talks to the compute side only through the bridge.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/session"
	"github.com/bearing-monitor/station/internal/view"
)

type updateMsg struct{ u bridge.Update }

type closedMsg struct{ err error }

// Model is the root Bubble Tea model.
type Model struct {
	conn   *bridge.PresentationSide
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	help   help.Model
	width  int
	height int

	state    view.State
	paramIdx int
	editing  bool
	input    textinput.Model

	mdStyle string
	md      *glamour.TermRenderer
	mdWidth int
	summary string

	closed  bool
	lastErr string
}

// Option configures a Model.
type Option func(*Model)

// WithMarkdownStyle selects the glamour style for result summaries
// ("dark", "light", "notty", ...).
func WithMarkdownStyle(style string) Option {
	return func(m *Model) { m.mdStyle = style }
}

// New creates the root model over the presentation end of the bridge.
func New(ctx context.Context, conn *bridge.PresentationSide, opts ...Option) Model {
	ctx, cancel := context.WithCancel(ctx)
	in := textinput.New()
	in.Prompt = "= "
	in.CharLimit = 64
	m := Model{
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		input:   in,
		mdStyle: "dark",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run shows the TUI until the user quits or ctx ends.
func Run(ctx context.Context, conn *bridge.PresentationSide, opts ...Option) error {
	m := New(ctx, conn, opts...)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts listening on the bridge.
func (m Model) Init() tea.Cmd {
	return m.listen()
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		u, err := m.conn.Recv(m.ctx)
		if err != nil {
			return closedMsg{err: err}
		}
		return updateMsg{u: u}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.renderSummary()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case updateMsg:
		m.apply(msg.u)
		return m, m.listen()

	case closedMsg:
		m.closed = true
		if !errors.Is(msg.err, bridge.ErrClosed) && !errors.Is(msg.err, context.Canceled) {
			m.lastErr = msg.err.Error()
		}
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(u bridge.Update) {
	if !m.state.Apply(u) {
		return
	}
	switch u := u.(type) {
	case bridge.ResultUpdated:
		m.renderSummary()
	case bridge.SessionRemoved:
		if m.state.Selected == "" {
			m.summary = ""
			m.paramIdx = 0
		}
	case bridge.ParamsUpdated:
		if m.paramIdx >= len(u.Params) {
			m.paramIdx = 0
		}
	case bridge.FieldValue:
		if u.Error != "" {
			m.lastErr = u.Error
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil
	}

	if m.state.Selected == "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Stop):
		m.setSelected(session.FieldStopCalculation, !m.state.Flags.Stop)

	case key.Matches(msg, m.keys.Backend):
		m.setSelected(session.FieldBackendCalculation, !m.state.Flags.Backend)

	case key.Matches(msg, m.keys.Recompute):
		m.send(bridge.RecomputeSelected{})

	case key.Matches(msg, m.keys.Algorithm):
		if next := m.state.NextAlgorithm(); next != "" && next != m.state.Algorithm {
			m.setSelected(session.FieldAlgorithmName, next)
		}

	case key.Matches(msg, m.keys.Above):
		if next := m.state.NextArtifact(m.state.Above); next != "" {
			m.setSelected(session.FieldAboveArtifact, next)
		}

	case key.Matches(msg, m.keys.Below):
		if next := m.state.NextArtifact(m.state.Below); next != "" {
			m.setSelected(session.FieldBelowArtifact, next)
		}

	case key.Matches(msg, m.keys.NextParam):
		if n := len(m.state.Params); n > 0 {
			m.paramIdx = (m.paramIdx + 1) % n
		}

	case key.Matches(msg, m.keys.Edit):
		if m.paramIdx < len(m.state.Params) {
			m.editing = true
			m.input.SetValue(m.state.Params[m.paramIdx].Text)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.stopEditing()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.paramIdx < len(m.state.Params) {
			m.send(bridge.SetParam{
				ID:   m.state.Selected,
				Name: m.state.Params[m.paramIdx].Name,
				Text: m.input.Value(),
			})
		}
		m.stopEditing()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) stopEditing() {
	m.editing = false
	m.input.Blur()
	m.input.Reset()
}

// moveSelection selects the instrument step places away from the current
// one, wrapping around the list.
func (m *Model) moveSelection(step int) {
	n := len(m.state.Sessions)
	if n == 0 {
		return
	}
	idx := -1
	for i, s := range m.state.Sessions {
		if s.ID == m.state.Selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
	} else {
		idx = (idx + step + n) % n
	}
	id := m.state.Sessions[idx].ID
	if id == m.state.Selected {
		return
	}
	m.state.Select(id)
	m.paramIdx = 0
	m.summary = ""
	m.send(bridge.SelectSession{ID: id})
}

func (m *Model) setSelected(f session.Field, v any) {
	m.send(bridge.SetSelectedField{Field: string(f), Value: v})
}

func (m *Model) send(c bridge.Command) {
	if err := m.conn.Send(c); err != nil {
		m.lastErr = fmt.Sprintf("%s: %v", c.Kind(), err)
	}
}

// renderSummary renders the result summary as markdown for the current
// width. A rendering failure falls back to the raw text.
func (m *Model) renderSummary() {
	text := m.state.Result.Summary
	if text == "" {
		m.summary = ""
		return
	}
	width := detailWidth(m.width) - 4
	if m.md == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.mdStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.summary = text
			return
		}
		m.md, m.mdWidth = r, width
	}
	out, err := m.md.Render(text)
	if err != nil {
		m.summary = text
		return
	}
	m.summary = out
}
