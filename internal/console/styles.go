package console

import "github.com/charmbracelet/lipgloss"

var (
	colorText   = lipgloss.Color("#cdd6f4")
	colorMuted  = lipgloss.Color("#a6adc8")
	colorBorder = lipgloss.Color("#45475a")
	colorAccent = lipgloss.Color("#74c7ec")
	colorGreen  = lipgloss.Color("#a6e3a1")
	colorRed    = lipgloss.Color("#f38ba8")
	colorPeach  = lipgloss.Color("#fab387")

	titleStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorRed)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Foreground(colorText).
			Padding(0, 1)

	statusStyles = map[string]lipgloss.Style{
		"Not connected":     lipgloss.NewStyle().Foreground(colorMuted).Bold(true),
		"Ready":             lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		"Recording":         lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		"Recording stopped": lipgloss.NewStyle().Foreground(colorPeach).Bold(true),
	}
)
