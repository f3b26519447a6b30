package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"logdash/internal/stream"
)

// ErrUnknownSection is returned for section names other than the four views.
var ErrUnknownSection = errors.New("unknown section")

// ErrSectionInactive is returned when a fetch is requested from a component
// whose section is not the active one.
var ErrSectionInactive = errors.New("section is not active")

// Section is one of the mutually exclusive dashboard views.
type Section string

const (
	SectionLive   Section = "live"
	SectionStats  Section = "stats"
	SectionErrors Section = "errors"
	SectionSearch Section = "search"
)

// Sections lists every view in display order.
var Sections = []Section{SectionLive, SectionStats, SectionErrors, SectionSearch}

// ParseSection resolves a section name, case-insensitively.
func ParseSection(name string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Sections {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// Backend is the set of request/response endpoints the dashboard polls.
type Backend interface {
	StatsFetcher
	DigestFetcher
	SearchFetcher
}

// Options configures a Controller.
type Options struct {
	Backend         Backend
	Transport       stream.Transport
	Sinks           Sinks
	RefreshInterval time.Duration
	StatsWindow     int
	// Initial is the section Start activates; empty selects live.
	Initial         Section
	Logger          *slog.Logger
}

// Controller owns the active section. It is the only writer of which view is
// active and the only caller of each component's activate/deactivate hooks.
type Controller struct {
	loop   *Loop
	logger *slog.Logger

	Live   *LiveTail
	Stats  *StatsAggregator
	Errors *ErrorDigest
	Search *Search

	running atomic.Bool
	active  Section
	started bool
}

// errClosed is returned when the controller is used before Start or after
// Close.
var errClosed = errors.New("dashboard: controller is not running")

// New wires the components onto a fresh loop. Nothing is opened until
// Start.
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("dashboard: backend is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("dashboard: transport is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loop := NewLoop()
	c := &Controller{
		loop:   loop,
		logger: logger,
		Live:   NewLiveTail(loop, opts.Transport, opts.Sinks.Live, logger),
		Stats:  NewStatsAggregator(loop, opts.Backend, opts.Sinks.Stats, opts.RefreshInterval, logger),
		Errors: NewErrorDigest(loop, opts.Backend, opts.Sinks.Digest, logger),
		Search: NewSearch(loop, opts.Backend, opts.Sinks.Search, logger),
		active: SectionLive,
	}

	if opts.Initial != "" {
		s, err := ParseSection(string(opts.Initial))
		if err != nil {
			return nil, err
		}
		c.active = s
	}
	if opts.StatsWindow != 0 {
		if !ValidWindow(opts.StatsWindow) {
			return nil, fmt.Errorf("%w: %d hours (choose one of %v)", ErrInvalidWindow, opts.StatsWindow, StatsWindows)
		}
		c.Stats.hours = opts.StatsWindow
	}
	return c, nil
}

// Start runs the loop and activates the initial section.
func (c *Controller) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	go c.loop.Run()
	c.loop.Call(func() { c.activate(c.active) })
}

// Run starts the controller and blocks until ctx is done, then releases
// every subscription and timer.
func (c *Controller) Run(ctx context.Context) {
	c.Start()
	<-ctx.Done()
	c.Close()
}

// Close deactivates the active section and stops the loop. It is safe to
// call more than once.
func (c *Controller) Close() {
	if !c.running.Load() {
		c.loop.Stop()
		return
	}
	c.loop.Call(func() {
		if c.started {
			c.deactivate(c.active)
			c.started = false
		}
	})
	c.loop.Stop()
}

// Activate switches to section s, running its initialization side effect.
// Re-activating the active section re-runs the side effect only.
func (c *Controller) Activate(s Section) error {
	if _, err := ParseSection(string(s)); err != nil {
		return err
	}
	if !c.running.Load() || !c.loop.Call(func() { c.activate(s) }) {
		return errClosed
	}
	return nil
}

// Active returns the active section.
func (c *Controller) Active() Section {
	if !c.running.Load() {
		return c.active
	}
	var s Section
	c.loop.Call(func() { s = c.active })
	return s
}

func (c *Controller) activate(s Section) {
	if c.started && s == c.active {
		c.logger.Debug("reloading section", "section", s)
		c.reload(s)
		return
	}

	if c.started {
		c.deactivate(c.active)
	}
	c.logger.Debug("activating section", "section", s, "previous", c.active)
	c.active = s
	c.started = true
	c.enter(s)
}

func (c *Controller) enter(s Section) {
	switch s {
	case SectionLive:
		c.Live.start()
	case SectionStats:
		c.Stats.activate()
	case SectionErrors:
		c.Errors.activate()
	case SectionSearch:
		// no fetch until the first query
		c.Search.activate()
	}
}

func (c *Controller) reload(s Section) {
	switch s {
	case SectionLive:
		c.Live.start()
	case SectionStats:
		c.Stats.refresh()
	case SectionErrors:
		c.Errors.load()
	}
}

func (c *Controller) deactivate(s Section) {
	switch s {
	case SectionLive:
		c.Live.stop()
	case SectionStats:
		c.Stats.deactivate()
	case SectionErrors:
		c.Errors.deactivate()
	case SectionSearch:
		c.Search.deactivate()
	}
}
