package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/robolink/robosock/internal/probe"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	pathStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	stateStyles = map[probe.State]lipgloss.Style{
		probe.StateLive:      lipgloss.NewStyle().Foreground(greenColor).Bold(true),
		probe.StateStale:     lipgloss.NewStyle().Foreground(warningColor),
		probe.StateNotSocket: lipgloss.NewStyle().Foreground(errorColor),
		probe.StateAbsent:    mutedStyle,
		probe.StateUnknown:   lipgloss.NewStyle().Foreground(errorColor).Italic(true),
	}
)

func stateStyle(s probe.State) lipgloss.Style {
	if style, ok := stateStyles[s]; ok {
		return style
	}
	return mutedStyle
}
