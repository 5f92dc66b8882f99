// Package theme provides the Lip Gloss color palette and reusable styles
// for the station TUI. It is a leaf package with no internal imports.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Log level colors.
var (
	ColorInfo     = lipgloss.Color("#9ca3af")
	ColorWarning  = lipgloss.Color("#d97706")
	ColorError    = lipgloss.Color("#dc2626")
	ColorCritical = lipgloss.Color("#a855f7")
)

// Plot colors.
var (
	ColorAbove = lipgloss.Color("#06b6d4")
	ColorBelow = lipgloss.Color("#22c55e")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// LevelColor picks the color for a formatted log line by its "[LEVEL]"
// prefix.
func LevelColor(line string) lipgloss.Color {
	switch {
	case strings.HasPrefix(line, "[CRITICAL]"):
		return ColorCritical
	case strings.HasPrefix(line, "[ERROR]"):
		return ColorError
	case strings.HasPrefix(line, "[WARNING]"):
		return ColorWarning
	default:
		return ColorInfo
	}
}

// FlagGlyph renders an on/off flag.
func FlagGlyph(on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("●")
	}
	return lipgloss.NewStyle().Foreground(ColorDimmed).Render("○")
}

// Reusable styles.
var (
	StylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Width(12)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
