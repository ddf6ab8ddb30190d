package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/types"
)

// clock formats world time compactly: "Y1 M3 D12 06:30".
func clock(t types.WorldTime) string {
	return fmt.Sprintf("Y%d M%d D%d %02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute)
}

// renderStatusBar produces a full-width inverted status line showing the
// location, qi, fatigue and world time. It turns orange while any fatigue
// warning is active.
func (m Model) renderStatusBar() string {
	s, err := m.kernel.State(m.sessionID)
	if err != nil {
		return styleStatusBar.Width(m.width).Render(" " + m.sessionID + " | not loaded")
	}
	ch := s.Character

	name := s.Location.Name
	if name == "" {
		name = s.Location.ID
	}
	left := fmt.Sprintf(" %s | Qi %.0f/%.0f | Fatigue %.0f/%.0f", name, ch.CurrentQi, ch.CoreCapacity, ch.Fatigue, ch.MentalFatigue)
	right := clock(s.Time) + " "

	candidate := fmt.Sprintf("Lv %d.%d | %s", ch.CultivationLevel, ch.CultivationSubLevel, right)
	if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
		right = candidate
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right

	style := styleStatusBar
	if len(fatigue.Warnings(ch)) > 0 {
		style = styleStatusWarn
	}
	return style.Width(m.width).Render(bar)
}
