package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"logdash/internal/models"
)

// ErrInvalidWindow is returned by SetWindow for windows not on offer.
var ErrInvalidWindow = errors.New("invalid stats window")

// StatsWindows are the offered time windows, in hours.
var StatsWindows = []int{1, 6, 24, 168}

const (
	DefaultStatsWindow     = 1
	DefaultRefreshInterval = 5 * time.Second
)

// ValidWindow reports whether hours is one of StatsWindows.
func ValidWindow(hours int) bool {
	for _, h := range StatsWindows {
		if h == hours {
			return true
		}
	}
	return false
}

// StatsFetcher issues the aggregate query.
type StatsFetcher interface {
	Stats(ctx context.Context, hours int) (models.StatsSnapshot, error)
}

// StatsAggregator polls the stats endpoint while its section is active and
// fans each snapshot out to three charts.
type StatsAggregator struct {
	loop     *Loop
	fetcher  StatsFetcher
	sinks    StatsSinks
	logger   *slog.Logger
	interval time.Duration

	hours    int
	snapshot models.StatsSnapshot
	loaded   bool
	failing  bool

	active bool
	ticker chan struct{}

	// epoch invalidates in-flight requests on deactivation; seq/applied
	// drop responses older than the last one applied.
	epoch   uint64
	seq     uint64
	applied uint64
}

// NewStatsAggregator creates an inactive aggregator. A non-positive interval
// selects DefaultRefreshInterval.
func NewStatsAggregator(loop *Loop, fetcher StatsFetcher, sinks StatsSinks, interval time.Duration, logger *slog.Logger) *StatsAggregator {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsAggregator{
		loop:     loop,
		fetcher:  fetcher,
		sinks:    sinks,
		logger:   logger.With("component", "stats"),
		interval: interval,
		hours:    DefaultStatsWindow,
	}
}

// SetWindow selects the time window. While active, it refreshes at once.
func (a *StatsAggregator) SetWindow(hours int) error {
	var err error
	a.loop.Call(func() { err = a.setWindow(hours) })
	return err
}

// Window returns the selected time window in hours.
func (a *StatsAggregator) Window() int {
	var h int
	a.loop.Call(func() { h = a.hours })
	return h
}

// Refresh issues one aggregate request for the current window. It fails
// with ErrSectionInactive unless the stats section is active.
func (a *StatsAggregator) Refresh() error {
	err := ErrSectionInactive
	a.loop.Call(func() {
		if a.active {
			err = nil
			a.refresh()
		}
	})
	return err
}

// Snapshot returns the last applied snapshot, if any.
func (a *StatsAggregator) Snapshot() (models.StatsSnapshot, bool) {
	var (
		snap models.StatsSnapshot
		ok   bool
	)
	a.loop.Call(func() { snap, ok = a.snapshot, a.loaded })
	return snap, ok
}

// Polling reports whether the refresh interval is running.
func (a *StatsAggregator) Polling() bool {
	var polling bool
	a.loop.Call(func() { polling = a.ticker != nil })
	return polling
}

func (a *StatsAggregator) setWindow(hours int) error {
	if !ValidWindow(hours) {
		return fmt.Errorf("%w: %d hours (choose one of %v)", ErrInvalidWindow, hours, StatsWindows)
	}
	a.hours = hours
	if a.active {
		a.refresh()
	}
	return nil
}

func (a *StatsAggregator) activate() {
	a.active = true
	a.startTicker()
	a.refresh()
}

func (a *StatsAggregator) deactivate() {
	a.active = false
	a.stopTicker()
	a.epoch++
}

func (a *StatsAggregator) startTicker() {
	a.stopTicker()

	done := make(chan struct{})
	a.ticker = done
	interval := a.interval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				a.loop.Post(func() { a.tick(done) })
			}
		}
	}()
}

func (a *StatsAggregator) stopTicker() {
	if a.ticker == nil {
		return
	}
	close(a.ticker)
	a.ticker = nil
}

// tick refreshes unless the ticker that fired has since been stopped.
func (a *StatsAggregator) tick(from chan struct{}) {
	if a.ticker != from {
		return
	}
	a.refresh()
}

func (a *StatsAggregator) refresh() {
	a.seq++
	seq, epoch, hours := a.seq, a.epoch, a.hours
	a.logger.Debug("refreshing stats", "hours", hours, "seq", seq)

	go func() {
		snap, err := a.fetcher.Stats(context.Background(), hours)
		a.loop.Post(func() { a.apply(seq, epoch, snap, err) })
	}()
}

func (a *StatsAggregator) apply(seq, epoch uint64, snap models.StatsSnapshot, err error) {
	if epoch != a.epoch || seq <= a.applied {
		a.logger.Debug("discarding stale stats response", "seq", seq)
		return
	}
	a.applied = seq

	if err != nil {
		a.failing = true
		a.logger.Warn("stats refresh failed", "error", err)
		if a.sinks.Status != nil {
			guard(a.logger, "stats-status", func() error {
				a.sinks.Status.ReportFailure(err)
				return nil
			})
		}
		return
	}

	a.snapshot = snap.Normalize()
	a.loaded = true
	if a.failing {
		a.failing = false
		if a.sinks.Status != nil {
			guard(a.logger, "stats-status", func() error {
				a.sinks.Status.ReportRecovered()
				return nil
			})
		}
	}
	a.fanOut()
}

// fanOut renders the current snapshot to every chart. A failing chart does
// not stop the others.
func (a *StatsAggregator) fanOut() {
	byPath, byStatus, byMethod := SeriesFor(a.snapshot)

	for _, target := range []struct {
		name   string
		sink   SeriesSink
		series Series
	}{
		{"requests-by-path", a.sinks.ByPath, byPath},
		{"status-codes", a.sinks.ByStatus, byStatus},
		{"methods", a.sinks.ByMethod, byMethod},
	} {
		if target.sink == nil {
			continue
		}
		sink, series := target.sink, target.series
		guard(a.logger, target.name, func() error { return sink.Render(series) })
	}
}

// SeriesFor splits a snapshot into the three chart series. Paths and methods
// are ordered by descending count; status classes by class.
func SeriesFor(s models.StatsSnapshot) (byPath, byStatus, byMethod Series) {
	byPath = Series{Name: "requests-by-path", Title: "Requests by Path"}
	for _, c := range models.SortedCounts(s.RequestsByPath) {
		byPath.Labels = append(byPath.Labels, c.Label)
		byPath.Values = append(byPath.Values, c.Value)
	}

	byStatus = Series{Name: "status-codes", Title: "Status Code Distribution"}
	classes := make([]string, 0, len(s.StatusCodes))
	for class := range s.StatusCodes {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		byStatus.Labels = append(byStatus.Labels, class)
		byStatus.Values = append(byStatus.Values, s.StatusCodes[class])
	}

	byMethod = Series{Name: "methods", Title: "HTTP Methods Distribution"}
	for _, c := range models.SortedCounts(s.Methods) {
		byMethod.Labels = append(byMethod.Labels, c.Label)
		byMethod.Values = append(byMethod.Values, c.Value)
	}
	return byPath, byStatus, byMethod
}
