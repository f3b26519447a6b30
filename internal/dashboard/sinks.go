package dashboard

import (
	"fmt"
	"log/slog"

	"logdash/internal/models"
)

// LiveSink displays the live tail. AppendEntry receives each new event once;
// the sink scrolls to the latest entry and trims its own display to
// LiveCapacity rows.
type LiveSink interface {
	AppendEntry(e models.LogEvent)
	StreamFailed(err error)
}

// Series is one breakdown ready for charting.
type Series struct {
	Name   string
	Title  string
	Labels []string
	Values []int
}

// SeriesSink draws one chart.
type SeriesSink interface {
	Render(s Series) error
}

// StatsStatusSink surfaces refresh failures without touching the charts.
type StatsStatusSink interface {
	ReportFailure(err error)
	ReportRecovered()
}

// StatsSinks are the three charts fed by each stats refresh.
type StatsSinks struct {
	ByPath   SeriesSink
	ByStatus SeriesSink
	ByMethod SeriesSink
	Status   StatsStatusSink
}

// DigestSink displays the categorized error digest.
type DigestSink interface {
	RenderDigest(groups []models.SeverityGroup)
	RenderEmpty()
	RenderFailure(err error)
}

// SearchSink displays search results.
type SearchSink interface {
	RenderResults(lines []string)
	RenderEmpty()
	RenderFailure(err error)
}

// Sinks bundles every rendering surface the dashboard drives.
type Sinks struct {
	Live   LiveSink
	Stats  StatsSinks
	Digest DigestSink
	Search SearchSink
}

// guard runs fn, turning a panic into an error so one misbehaving sink
// cannot take the loop down.
func guard(logger *slog.Logger, sink string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		logger.Error("rendering sink failed", "sink", sink, "error", err)
	}
}
