package tui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Bar       lipgloss.Style
	Error     lipgloss.Style
	Warn      lipgloss.Style
	Status    map[string]lipgloss.Style
}

func NewStyles() Styles {
	return Styles{
		Tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		ActiveTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")),
		Title:     lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bar:       lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Status: map[string]lipgloss.Style{
			"2xx": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			"3xx": lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			"4xx": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			"5xx": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		},
	}
}

func (s Styles) statusStyle(class string) lipgloss.Style {
	if st, ok := s.Status[class]; ok {
		return st
	}
	return s.Muted
}
