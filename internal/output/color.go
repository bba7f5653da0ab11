// Package output provides styled terminal rendering helpers for failtrack.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorCritical is used for CRITICAL severity.
	ColorCritical = lipgloss.Color("#ef5350")

	// ColorHigh is used for HIGH severity.
	ColorHigh = lipgloss.Color("#ff8a65")

	// ColorMedium is used for MEDIUM severity.
	ColorMedium = lipgloss.Color("#fff59d")

	// ColorLow is used for LOW severity and secondary text.
	ColorLow = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// StyleCritical is used for CRITICAL severity values.
	StyleCritical = lipgloss.NewStyle().
			Foreground(ColorCritical).
			Bold(true)

	// StyleHigh is used for HIGH severity values.
	StyleHigh = lipgloss.NewStyle().
			Foreground(ColorHigh)

	// StyleMedium is used for MEDIUM severity values.
	StyleMedium = lipgloss.NewStyle().
			Foreground(ColorMedium)

	// StyleMuted is used for LOW severity and de-emphasized text.
	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorLow)

	// StyleBold is used for emphasized text.
	StyleBold = lipgloss.NewStyle().
			Bold(true)
)

// noColor tracks whether color output is disabled.
var noColor bool

// SetNoColor disables or enables color output globally.
// When disabled, all package-level styles are reassigned to unstyled
// renderers.
func SetNoColor(disabled bool) {
	noColor = disabled
	if disabled {
		plain := lipgloss.NewStyle()
		StyleHeader = plain
		StyleCritical = plain
		StyleHigh = plain
		StyleMedium = plain
		StyleMuted = plain
		StyleBold = plain
	}
}

// AutoColor disables color when stdout is not a terminal.
func AutoColor() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		SetNoColor(true)
	}
}

// SeverityStyle returns the style matching a severity string.
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "CRITICAL":
		return StyleCritical
	case "HIGH":
		return StyleHigh
	case "MEDIUM":
		return StyleMedium
	default:
		return StyleMuted
	}
}
