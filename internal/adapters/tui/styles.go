package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#a6adc8")
	colorBorder  = lipgloss.Color("#45475a")
	colorAccent  = lipgloss.Color("#74c7ec")
	colorSuccess = lipgloss.Color("#a6e3a1")
	colorWarning = lipgloss.Color("#fab387")
	colorError   = lipgloss.Color("#f38ba8")

	appStyle = lipgloss.NewStyle().
		Foreground(colorText).
		Padding(1, 2)

	paneStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	titleStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	stateStyle   = lipgloss.NewStyle().Foreground(colorAccent)
	resultStyle  = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(colorAccent)
)
