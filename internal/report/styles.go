package report

import "github.com/charmbracelet/lipgloss"

// Shared terminal styles for CLI output.
var (
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		MarginBottom(1)

	Label = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Width(16)

	Value = lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	StatusOK = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusEvent = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFail = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	Graph = lipgloss.NewStyle().
		Foreground(lipgloss.Color("49")).
		Padding(1, 0)
)
