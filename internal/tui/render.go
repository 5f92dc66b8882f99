package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bearing-monitor/station/internal/tui/theme"
)

const (
	listWidth = 28
	logLines  = 8
)

func detailWidth(total int) int {
	return max(total-listWidth-4, 40)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderDetail())
	sections := []string{
		m.renderStatus(),
		body,
		m.renderLog(),
	}
	if m.lastErr != "" {
		sections = append(sections, theme.StyleError.Render("  "+m.lastErr))
	}
	sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatus() string {
	var conn string
	if m.closed {
		conn = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Station stopped")
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Station running")
	}
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := conn + sep + fmt.Sprintf("%d instruments", len(m.state.Sessions))
	if info, ok := m.state.SelectedInfo(); ok {
		content += sep + info.Name + " (" + info.DeviceType + ")"
	}
	return lipgloss.NewStyle().
		Width(max(m.width-2, 40)).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderList() string {
	lines := []string{theme.StyleHeader.Render("Instruments")}
	for _, s := range m.state.Sessions {
		name := truncate(s.Name, listWidth-4)
		if s.ID == m.state.Selected {
			lines = append(lines, theme.StyleSelected.Render("> "+name))
			continue
		}
		lines = append(lines, "  "+name)
	}
	if len(m.state.Sessions) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("No instruments connected"))
	}
	return theme.StylePanel.Width(listWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail() string {
	width := detailWidth(m.width)
	if m.state.Selected == "" {
		return theme.StylePanel.Width(width).Render(theme.StyleDimmed.Render("Select an instrument with j/k"))
	}

	var b strings.Builder
	writeRow(&b, "Algorithm", m.renderAlgorithms())
	writeRow(&b, "Stopped", theme.FlagGlyph(m.state.Flags.Stop))
	writeRow(&b, "Backend", theme.FlagGlyph(m.state.Flags.Backend))
	writeRow(&b, "Pending", theme.FlagGlyph(m.state.Flags.NeedUpdate))

	if len(m.state.Params) > 0 {
		b.WriteString("\n" + theme.StyleHeader.Render("Parameters") + "\n")
		for i, p := range m.state.Params {
			prefix := "  "
			if i == m.paramIdx {
				prefix = "> "
			}
			value := p.Text
			if i == m.paramIdx && m.editing {
				value = m.input.View()
			}
			writeRow(&b, prefix+p.Name, value+theme.StyleDimmed.Render(" "+p.Type))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderPlot(m.state.Above, theme.ColorAbove, width-4))
	b.WriteString(m.renderPlot(m.state.Below, theme.ColorBelow, width-4))
	if m.summary != "" {
		b.WriteString(m.summary)
	}
	return theme.StylePanel.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderAlgorithms() string {
	parts := make([]string, 0, len(m.state.Algorithms))
	for _, name := range m.state.Algorithms {
		if name == m.state.Algorithm {
			parts = append(parts, theme.StyleSelected.Render("["+name+"]"))
			continue
		}
		parts = append(parts, theme.StyleDimmed.Render(name))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderPlot(name string, color lipgloss.Color, width int) string {
	a, ok := m.state.Result.Artifacts[name]
	if !ok {
		return ""
	}
	title := a.Title
	if title == "" {
		title = name
	}
	line := lipgloss.NewStyle().Foreground(color).Render(sparkline(a.Values, width))
	return theme.StyleDimmed.Render(title) + "\n" + line + "\n"
}

func (m Model) renderLog() string {
	lines := m.state.Log
	if len(lines) > logLines {
		lines = lines[len(lines)-logLines:]
	}
	rendered := make([]string, 0, len(lines)+1)
	rendered = append(rendered, theme.StyleHeader.Render("Log"))
	for _, l := range lines {
		rendered = append(rendered, lipgloss.NewStyle().Foreground(theme.LevelColor(l)).Render(truncate(l, max(m.width-4, 20))))
	}
	return theme.StylePanel.Width(max(m.width-2, 40)).Render(strings.Join(rendered, "\n"))
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(theme.StyleLabel.Render(label) + " " + value + "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
