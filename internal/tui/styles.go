package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5F5F")
	colorGreen  = lipgloss.Color("#5FD787")
	colorYellow = lipgloss.Color("#FFD75F")
	colorCyan   = lipgloss.Color("#5FD7FF")
	colorGray   = lipgloss.Color("#808080")
	colorWhite  = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	connectedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorCyan)

	humanLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	sqlStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(colorGray).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)
