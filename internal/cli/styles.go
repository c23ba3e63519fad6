package cli

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	SubtleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	overStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	underStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	evenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)
