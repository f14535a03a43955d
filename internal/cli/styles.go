// Package cli renders cardwise output for the terminal: reports, job
// progress, prompts and interrupt handling.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette entries adapt to light and dark terminal backgrounds.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#2F5FC4", Dark: "#5B8DEF"}
	good    = lipgloss.AdaptiveColor{Light: "#1E8C84", Dark: "#4ECDC4"}
	caution = lipgloss.AdaptiveColor{Light: "#A67C00", Dark: "#FFE66D"}
	bad     = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	note    = lipgloss.AdaptiveColor{Light: "#2E7D6F", Dark: "#95E1D3"}
	muted   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#666666"}
	frame   = lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#333333"}
)

// Styles shared by every renderer in this package.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(good)
	WarningStyle = lipgloss.NewStyle().Foreground(caution)
	ErrorStyle   = lipgloss.NewStyle().Foreground(bad)
	InfoStyle    = lipgloss.NewStyle().Foreground(note)
	SubtleStyle  = lipgloss.NewStyle().Foreground(muted)

	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	PromptStyle = TitleStyle

	TableHeaderStyle = TitleStyle.PaddingRight(2)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(1, 2)
)

// Icons prefixed to status lines.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	CardIcon    = "💳"
	ChartIcon   = "📊"
	ClockIcon   = "⏳"
)

func badge(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess renders a success line.
func FormatSuccess(message string) string { return badge(SuccessStyle, SuccessIcon, message) }

// FormatError renders an error line.
func FormatError(message string) string { return badge(ErrorStyle, ErrorIcon, message) }

// FormatWarning renders a warning line.
func FormatWarning(message string) string { return badge(WarningStyle, WarningIcon, message) }

// FormatInfo renders an informational line.
func FormatInfo(message string) string { return badge(InfoStyle, InfoIcon, message) }

// FormatTitle renders a section heading followed by a blank line.
func FormatTitle(title string) string {
	return TitleStyle.MarginBottom(1).Render(CardIcon + " " + title)
}

// FormatPrompt renders a question awaiting input.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), content))
}
