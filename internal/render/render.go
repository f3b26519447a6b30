// Package render draws the dashboard onto a plain terminal: live lines
// colored by status class, stats breakdowns as bar tables, and the error
// digest and search results as text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"logdash/internal/dashboard"
	"logdash/internal/models"
)

// maxBar is the width of the longest bar in a breakdown table.
const maxBar = 40

// Printer writes colored text to out. All sinks built from one Printer share
// its palette.
type Printer struct {
	out io.Writer

	ok      *color.Color
	redir   *color.Color
	client  *color.Color
	server  *color.Color
	muted   *color.Color
	header  *color.Color
	warn    *color.Color
	failure *color.Color
}

// New creates a Printer. With noColor set, every escape sequence is
// suppressed regardless of the terminal.
func New(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		ok:      color.New(color.FgGreen),
		redir:   color.New(color.FgCyan),
		client:  color.New(color.FgYellow),
		server:  color.New(color.FgRed, color.Bold),
		muted:   color.New(color.FgHiBlack),
		header:  color.New(color.FgWhite, color.Bold),
		warn:    color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range p.palette() {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) palette() []*color.Color {
	return []*color.Color{p.ok, p.redir, p.client, p.server, p.muted, p.header, p.warn, p.failure}
}

// StatusColor returns the color used for a status class such as "4xx".
func (p *Printer) StatusColor(class string) *color.Color {
	switch class {
	case "2xx":
		return p.ok
	case "3xx":
		return p.redir
	case "4xx":
		return p.client
	case "5xx":
		return p.server
	}
	return p.muted
}

// Event formats one live entry as "timestamp METHOD path status".
func (p *Printer) Event(e models.LogEvent) string {
	return fmt.Sprintf("%s %-7s %s %s",
		p.muted.Sprint(e.Timestamp),
		e.Method,
		e.Path,
		p.StatusColor(e.StatusClass()).Sprint(e.Status))
}

func (p *Printer) Failure(format string, a ...any) {
	p.failure.Fprintf(p.out, "✗ "+format+"\n", a...)
}

func (p *Printer) Warn(format string, a ...any) {
	p.warn.Fprintf(p.out, "⚠ "+format+"\n", a...)
}

func (p *Printer) Info(format string, a ...any) {
	p.muted.Fprintf(p.out, format+"\n", a...)
}

// Sinks returns text sinks for every dashboard surface.
func (p *Printer) Sinks() dashboard.Sinks {
	chart := &Chart{p: p}
	return dashboard.Sinks{
		Live: &Live{p: p},
		Stats: dashboard.StatsSinks{
			ByPath:   chart,
			ByStatus: chart,
			ByMethod: chart,
			Status:   &StatsStatus{p: p},
		},
		Digest: &Digest{p: p},
		Search: &Results{p: p},
	}
}

// Live prints each live entry on its own line.
type Live struct{ p *Printer }

func (l *Live) AppendEntry(e models.LogEvent) {
	fmt.Fprintln(l.p.out, l.p.Event(e))
}

func (l *Live) StreamFailed(err error) {
	l.p.Failure("live stream ended: %v", err)
}

// Chart prints a breakdown as a table with proportional bars.
type Chart struct{ p *Printer }

func (c *Chart) Render(s dashboard.Series) error {
	if len(s.Labels) != len(s.Values) {
		return fmt.Errorf("series %s: %d labels for %d values", s.Name, len(s.Labels), len(s.Values))
	}

	table := NewTable(c.p, []string{s.Title, "Count", ""})
	peak := 0
	for _, v := range s.Values {
		peak = max(peak, v)
	}
	for i, label := range s.Labels {
		table.AddRow([]string{label, fmt.Sprint(s.Values[i]), bar(s.Values[i], peak)})
	}
	if len(s.Labels) == 0 {
		table.AddRow([]string{"(no data)", "0", ""})
	}
	table.Render()
	fmt.Fprintln(c.p.out)
	return nil
}

func bar(v, peak int) string {
	if peak <= 0 || v <= 0 {
		return ""
	}
	n := v * maxBar / peak
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// StatsStatus reports refresh failures under the charts.
type StatsStatus struct{ p *Printer }

func (s *StatsStatus) ReportFailure(err error) {
	s.p.Warn("stats refresh failed, showing last good data: %v", err)
}

func (s *StatsStatus) ReportRecovered() {
	s.p.Info("stats refresh recovered")
}

// Digest prints each severity group with its count and entries.
type Digest struct{ p *Printer }

func (d *Digest) RenderDigest(groups []models.SeverityGroup) {
	for _, g := range groups {
		d.p.header.Fprintf(d.p.out, "%s (%d)\n", strings.ToUpper(g.Level), g.Count)
		for _, e := range g.Entries {
			fmt.Fprintf(d.p.out, "  %s %s\n", d.p.muted.Sprint(e.Timestamp), e.Message)
		}
	}
}

func (d *Digest) RenderEmpty() {
	d.p.Info("No errors recorded")
}

func (d *Digest) RenderFailure(err error) {
	d.p.Failure("failed to load errors: %v", err)
}

// Results prints search matches verbatim.
type Results struct{ p *Printer }

func (r *Results) RenderResults(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(r.p.out, line)
	}
}

func (r *Results) RenderEmpty() {
	r.p.Info("No matches found")
}

func (r *Results) RenderFailure(err error) {
	r.p.Failure("search failed: %v", err)
}
