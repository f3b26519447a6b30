package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"logdash/internal/dashboard"
	"logdash/internal/models"
)

const chartBar = 30

var tabTitles = map[dashboard.Section]string{
	dashboard.SectionLive:   "Live Logs",
	dashboard.SectionStats:  "Statistics",
	dashboard.SectionErrors: "Error Logs",
	dashboard.SectionSearch: "Search",
}

// WindowLabel is the selector label for a stats window in hours.
func WindowLabel(hours int) string {
	if hours%24 == 0 && hours >= 168 {
		return fmt.Sprintf("%dd", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString("\n")
	if m.section == dashboard.SectionSearch {
		b.WriteString(m.searchBar())
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) tabs() string {
	parts := make([]string, 0, len(dashboard.Sections))
	for i, s := range dashboard.Sections {
		label := fmt.Sprintf("%d %s", i+1, tabTitles[s])
		if s == m.section {
			parts = append(parts, m.styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, m.styles.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) searchBar() string {
	return fmt.Sprintf("%s  %s", m.input.View(), m.styles.Muted.Render("["+string(m.logType)+"]"))
}

func (m *Model) body() string {
	switch m.section {
	case dashboard.SectionStats:
		return m.statsBody()
	case dashboard.SectionErrors:
		return m.digestBody()
	case dashboard.SectionSearch:
		return m.searchBody()
	default:
		return m.liveBody()
	}
}

func (m *Model) liveBody() string {
	var b strings.Builder
	for _, e := range m.live {
		b.WriteString(m.eventLine(e))
		b.WriteString("\n")
	}
	if m.liveErr != nil {
		b.WriteString(m.styles.Error.Render("stream ended: " + m.liveErr.Error() + " (r to reconnect)"))
		b.WriteString("\n")
	} else if len(m.live) == 0 {
		b.WriteString(m.styles.Muted.Render("waiting for log entries..."))
	}
	return b.String()
}

func (m *Model) eventLine(e models.LogEvent) string {
	return fmt.Sprintf("%s %-7s %s %s",
		m.styles.Muted.Render(e.Timestamp),
		e.Method,
		e.Path,
		m.styles.statusStyle(e.StatusClass()).Render(fmt.Sprint(e.Status)))
}

func (m *Model) statsBody() string {
	var b strings.Builder

	labels := make([]string, 0, len(dashboard.StatsWindows))
	for _, h := range dashboard.StatsWindows {
		l := WindowLabel(h)
		if h == m.window {
			l = "[" + l + "]"
		}
		labels = append(labels, l)
	}
	b.WriteString("window: " + strings.Join(labels, " ") + "\n")

	if m.statsErr != nil {
		b.WriteString(m.styles.Warn.Render("refresh failed, showing last good data: "+m.statsErr.Error()) + "\n")
	}
	if !m.statsSeen {
		b.WriteString(m.styles.Muted.Render("loading..."))
		return b.String()
	}

	for _, name := range []string{"requests-by-path", "status-codes", "methods"} {
		s, ok := m.charts[name]
		if !ok {
			continue
		}
		b.WriteString("\n")
		b.WriteString(m.chart(s))
	}
	return b.String()
}

func (m *Model) chart(s dashboard.Series) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(s.Title))
	b.WriteString("\n")
	if len(s.Labels) == 0 {
		b.WriteString(m.styles.Muted.Render("  no data") + "\n")
		return b.String()
	}

	width, peak := 0, 0
	for i, l := range s.Labels {
		width = max(width, lipgloss.Width(l))
		peak = max(peak, s.Values[i])
	}
	for i, l := range s.Labels {
		n := 0
		if peak > 0 {
			n = max(1, s.Values[i]*chartBar/peak)
		}
		style := m.styles.Bar
		if s.Name == "status-codes" {
			style = m.styles.statusStyle(l)
		}
		fmt.Fprintf(&b, "  %-*s %s %d\n", width, l, style.Render(strings.Repeat("█", n)), s.Values[i])
	}
	return b.String()
}

func (m *Model) digestBody() string {
	switch m.digestState {
	case stateLoading, stateIdle:
		return m.styles.Muted.Render("loading...")
	case stateEmpty:
		return m.styles.Muted.Render("No errors recorded")
	case stateFailed:
		if m.digest == nil {
			return m.styles.Error.Render("failed to load errors: " + m.digestErr.Error())
		}
	}

	var b strings.Builder
	if m.digestState == stateFailed {
		b.WriteString(m.styles.Error.Render("failed to load errors: "+m.digestErr.Error()) + "\n\n")
	}
	for _, g := range m.digest {
		b.WriteString(m.styles.Title.Render(fmt.Sprintf("%s (%d)", strings.ToUpper(g.Level), g.Count)))
		b.WriteString("\n")
		for _, e := range g.Entries {
			fmt.Fprintf(&b, "  %s %s\n", m.styles.Muted.Render(e.Timestamp), e.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) searchBody() string {
	switch m.searchState {
	case stateIdle:
		return m.styles.Muted.Render("enter a pattern and press enter")
	case stateLoading:
		return m.styles.Muted.Render("searching...")
	case stateEmpty:
		return m.styles.Muted.Render("No matches found")
	case stateFailed:
		return m.styles.Error.Render("search failed: " + m.searchErr.Error())
	}
	return strings.Join(m.results, "\n")
}
