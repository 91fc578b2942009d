package ui

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles the editor renders with.
type Styles struct {
	Header      lipgloss.Style
	Label       lipgloss.Style
	Footer      lipgloss.Style
	MutedText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	Badge       lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f8f8f2")).
			Background(lipgloss.Color("#44475a")).
			Bold(true).
			Padding(0, 1),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bd93f9")),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")).
			Padding(0, 1),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50fa7b")).
			Bold(true),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c")),
		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true),
		Badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#282a36")).
			Background(lipgloss.Color("#8be9fd")).
			Padding(0, 1),
	}
}
