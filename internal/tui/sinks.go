package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"logdash/internal/dashboard"
	"logdash/internal/models"
)

// Sink calls arrive on the dashboard loop and are forwarded to the program
// as messages; the model applies them in Update.
type (
	entryMsg        struct{ event models.LogEvent }
	streamFailedMsg struct{ err error }

	seriesMsg         struct{ series dashboard.Series }
	statsFailedMsg    struct{ err error }
	statsRecoveredMsg struct{}

	digestMsg       struct{ groups []models.SeverityGroup }
	digestEmptyMsg  struct{}
	digestFailedMsg struct{ err error }

	resultsMsg       struct{ lines []string }
	resultsEmptyMsg  struct{}
	resultsFailedMsg struct{ err error }
)

type sinks struct {
	send func(tea.Msg)
}

// NewSinks returns dashboard sinks that deliver every rendering call through
// send, typically (*tea.Program).Send.
func NewSinks(send func(tea.Msg)) dashboard.Sinks {
	s := &sinks{send: send}
	charts := seriesSink{s}
	return dashboard.Sinks{
		Live: liveSink{s},
		Stats: dashboard.StatsSinks{
			ByPath:   charts,
			ByStatus: charts,
			ByMethod: charts,
			Status:   statusSink{s},
		},
		Digest: digestSink{s},
		Search: searchSink{s},
	}
}

type liveSink struct{ *sinks }

func (l liveSink) AppendEntry(e models.LogEvent) { l.send(entryMsg{e}) }
func (l liveSink) StreamFailed(err error)        { l.send(streamFailedMsg{err}) }

type seriesSink struct{ *sinks }

func (c seriesSink) Render(s dashboard.Series) error {
	c.send(seriesMsg{s})
	return nil
}

type statusSink struct{ *sinks }

func (s statusSink) ReportFailure(err error) { s.send(statsFailedMsg{err}) }
func (s statusSink) ReportRecovered()        { s.send(statsRecoveredMsg{}) }

type digestSink struct{ *sinks }

func (d digestSink) RenderDigest(groups []models.SeverityGroup) { d.send(digestMsg{groups}) }
func (d digestSink) RenderEmpty()                               { d.send(digestEmptyMsg{}) }
func (d digestSink) RenderFailure(err error)                    { d.send(digestFailedMsg{err}) }

type searchSink struct{ *sinks }

func (r searchSink) RenderResults(lines []string) { r.send(resultsMsg{lines}) }
func (r searchSink) RenderEmpty()                 { r.send(resultsEmptyMsg{}) }
func (r searchSink) RenderFailure(err error)      { r.send(resultsFailedMsg{err}) }
