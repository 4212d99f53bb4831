package commands

import "github.com/charmbracelet/lipgloss"

// Palette
const (
	colorAccent    = "#7C3AED"
	colorSecondary = "#B1B8C7"
	colorMuted     = "#6D7383"
	colorSuccess   = "#22C55E"
	colorWarning   = "#F59E0B"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSecondary)).Width(12)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))

	stateStyles = map[string]lipgloss.Style{
		"scheduled": lipgloss.NewStyle().Foreground(lipgloss.Color(colorSecondary)),
		"active":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorSuccess)),
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		"cancelled": lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)),
	}
)

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func stateBadge(state string) string {
	style, ok := stateStyles[state]
	if !ok {
		return state
	}
	return style.Render(state)
}
