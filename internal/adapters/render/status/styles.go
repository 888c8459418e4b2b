package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	wallet    lipgloss.Style
	active    lipgloss.Style
	detail    lipgloss.Style
	key       lipgloss.Style
	meta      lipgloss.Style
	warning   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	connected lipgloss.Style
	pending   lipgloss.Style
	failed    lipgloss.Style
	amount    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		wallet:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		key:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		connected: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		amount:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
	}
}
