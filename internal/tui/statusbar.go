package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(m *Model, width int) string {
	if m.err != nil {
		return statusBarStyle.
			Background(colorRed).
			Width(width).
			Render(" " + m.err.Error())
	}
	if m.notice != "" {
		return statusBarStyle.
			Width(width).
			Render(" " + noticeStyle.Render(m.notice))
	}

	left := " " + getKeyHints(m)

	right := ""
	if m.connected {
		right = lipgloss.NewStyle().Foreground(colorGreen).Render(m.themeLabel()) + " "
	} else {
		right = lipgloss.NewStyle().Foreground(colorYellow).Bold(true).Render("⚠ Disconnected") + " "
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return statusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) themeLabel() string {
	if m.themeDisplay != "" {
		return m.themeDisplay
	}
	return "Connected"
}

func getKeyHints(m *Model) string {
	if m.adding {
		return keyHint("Enter", "save") + "  " + keyHint("Esc", "cancel")
	}
	return keyHint("n", "next") + "  " + keyHint("c", "complete") + "  " +
		keyHint("a", "add") + "  " + keyHint("space", "timer") + "  " +
		keyHint("s", "skip") + "  " + keyHint("t", "theme") + "  " +
		keyHint("q", "quit")
}

func keyHint(k, desc string) string {
	return keyStyle.Render(k) + " " + hintStyle.Render(desc)
}
