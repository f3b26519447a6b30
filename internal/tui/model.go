// Package tui is the interactive terminal front end of the dashboard. It
// owns no dashboard state: every sink call is delivered as a message and
// every user action is handed to the controller from a command, never from
// Update itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"logdash/internal/dashboard"
	"logdash/internal/models"
)

// Controller is the part of the dashboard the model drives.
type Controller interface {
	Activate(s dashboard.Section) error
	SetWindow(hours int) error
	Query(pattern, logType string) (bool, error)
}

type dashController struct{ c *dashboard.Controller }

func (d dashController) Activate(s dashboard.Section) error { return d.c.Activate(s) }
func (d dashController) SetWindow(hours int) error          { return d.c.Stats.SetWindow(hours) }
func (d dashController) Query(pattern, logType string) (bool, error) {
	return d.c.Search.Query(pattern, logType)
}

// Wrap adapts a dashboard controller for the model.
func Wrap(c *dashboard.Controller) Controller { return dashController{c} }

type (
	sectionMsg struct {
		section dashboard.Section
		err     error
	}
	windowMsg struct {
		hours int
		err   error
	}
	queryMsg struct {
		issued bool
		err    error
	}
)

// viewState tracks what a request/response section is currently showing.
type viewState int

const (
	stateIdle viewState = iota
	stateLoading
	stateReady
	stateEmpty
	stateFailed
)

type Model struct {
	ctrl   Controller
	styles Styles

	section dashboard.Section
	width   int
	height  int
	status  string

	live     []models.LogEvent
	liveErr  error
	follow   bool
	viewport viewport.Model
	ready    bool

	window    int
	charts    map[string]dashboard.Series
	statsErr  error
	statsSeen bool

	digest      []models.SeverityGroup
	digestState viewState
	digestErr   error

	input       textinput.Model
	logType     models.LogType
	results     []string
	searchState viewState
	searchErr   error
}

// NewModel creates the model showing the live section. window is the
// stats window the controller was configured with.
func NewModel(ctrl Controller, window int, logType models.LogType) *Model {
	input := textinput.New()
	input.Placeholder = "pattern"
	input.Prompt = "search: "
	input.CharLimit = 256

	if logType == "" {
		logType = models.LogTypeAccess
	}
	if !dashboard.ValidWindow(window) {
		window = dashboard.DefaultStatsWindow
	}
	return &Model{
		ctrl:     ctrl,
		styles:   NewStyles(),
		section:  dashboard.SectionLive,
		follow:   true,
		viewport: viewport.New(80, 20),
		window:   window,
		charts:   map[string]dashboard.Series{},
		input:    input,
		logType:  logType,
	}
}

// Run starts the controller and the program and blocks until the user
// quits or ctx is done.
func Run(ctx context.Context, opts dashboard.Options, logType models.LogType) error {
	var prog atomic.Pointer[tea.Program]
	opts.Initial = dashboard.SectionLive
	opts.Sinks = NewSinks(func(msg tea.Msg) {
		if p := prog.Load(); p != nil {
			p.Send(msg)
		}
	})

	ctrl, err := dashboard.New(opts)
	if err != nil {
		return err
	}

	window := opts.StatsWindow
	if window == 0 {
		window = dashboard.DefaultStatsWindow
	}
	m := NewModel(Wrap(ctrl), window, logType)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	prog.Store(p)

	ctrl.Start()
	defer ctrl.Close()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// activate marks the target loading before the command runs. Sink
// messages for the new section may arrive ahead of its sectionMsg.
func (m *Model) activate(s dashboard.Section) tea.Cmd {
	if s == dashboard.SectionErrors {
		m.digestState = stateLoading
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return sectionMsg{section: s, err: ctrl.Activate(s)}
	}
}

func (m *Model) cycleWindow() tea.Cmd {
	next := dashboard.StatsWindows[0]
	for i, h := range dashboard.StatsWindows {
		if h == m.window && i+1 < len(dashboard.StatsWindows) {
			next = dashboard.StatsWindows[i+1]
		}
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return windowMsg{hours: next, err: ctrl.SetWindow(next)}
	}
}

func (m *Model) submitSearch() tea.Cmd {
	pattern := m.input.Value()
	logType := string(m.logType)
	if !(models.SearchQuery{Pattern: pattern}).Blank() {
		m.searchState = stateLoading
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		issued, err := ctrl.Query(pattern, logType)
		return queryMsg{issued: issued, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - 4
		if h < 3 {
			h = 3
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = h
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sectionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("cannot switch to %s: %v", msg.section, msg.err)
			if msg.section == dashboard.SectionErrors && m.digestState == stateLoading {
				m.digestState, m.digestErr = stateFailed, msg.err
			}
			return m, nil
		}
		m.section = msg.section
		m.status = ""
		if msg.section == dashboard.SectionLive {
			m.liveErr = nil
			m.follow = true
		}
		m.refresh()
		return m, nil

	case windowMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.window = msg.hours
		m.refresh()
		return m, nil

	case queryMsg:
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
			if m.searchState == stateLoading {
				m.searchState, m.searchErr = stateFailed, msg.err
			}
		case msg.issued:
			m.status = ""
		}
		m.refresh()
		return m, nil

	case entryMsg:
		m.live = append(m.live, msg.event)
		if over := len(m.live) - dashboard.LiveCapacity; over > 0 {
			m.live = append(m.live[:0:0], m.live[over:]...)
		}
		if m.section == dashboard.SectionLive {
			m.refresh()
		}
		return m, nil

	case streamFailedMsg:
		m.liveErr = msg.err

	case seriesMsg:
		m.charts[msg.series.Name] = msg.series
		m.statsSeen = true

	case statsFailedMsg:
		m.statsErr = msg.err

	case statsRecoveredMsg:
		m.statsErr = nil

	case digestMsg:
		m.digest, m.digestState, m.digestErr = msg.groups, stateReady, nil

	case digestEmptyMsg:
		m.digest, m.digestState, m.digestErr = nil, stateEmpty, nil

	case digestFailedMsg:
		m.digestState, m.digestErr = stateFailed, msg.err

	case resultsMsg:
		m.results, m.searchState, m.searchErr = msg.lines, stateReady, nil

	case resultsEmptyMsg:
		m.results, m.searchState, m.searchErr = nil, stateEmpty, nil

	case resultsFailedMsg:
		m.searchState, m.searchErr = stateFailed, msg.err
	}

	m.refresh()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+l":
		m.input.Blur()
		return m, m.activate(dashboard.SectionLive)
	case "ctrl+s":
		m.input.Blur()
		return m, m.activate(dashboard.SectionStats)
	case "ctrl+e":
		m.input.Blur()
		return m, m.activate(dashboard.SectionErrors)
	case "ctrl+f":
		return m, tea.Batch(m.activate(dashboard.SectionSearch), m.input.Focus())
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			return m, m.submitSearch()
		case tea.KeyEsc:
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4":
		s := dashboard.Sections[int(msg.String()[0]-'1')]
		return m, m.activate(s)
	case "r":
		return m, m.activate(m.section)
	case "w":
		if m.section == dashboard.SectionStats {
			return m, m.cycleWindow()
		}
	case "t":
		if m.section == dashboard.SectionSearch {
			m.toggleLogType()
			m.refresh()
			return m, nil
		}
	case "/":
		if m.section == dashboard.SectionSearch {
			return m, m.input.Focus()
		}
	case "f":
		if m.section == dashboard.SectionLive {
			m.follow = !m.follow
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if m.section == dashboard.SectionLive && !m.viewport.AtBottom() {
		m.follow = false
	}
	return m, cmd
}

func (m *Model) toggleLogType() {
	if m.logType == models.LogTypeAccess {
		m.logType = models.LogTypeError
	} else {
		m.logType = models.LogTypeAccess
	}
}

// refresh re-renders the active section into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.body())
	if m.section == dashboard.SectionLive && m.follow {
		m.viewport.GotoBottom()
	}
}

// Section returns the section currently shown.
func (m *Model) Section() dashboard.Section { return m.section }

func (m *Model) statusLine() string {
	if m.status != "" {
		return m.styles.Warn.Render(m.status)
	}
	hints := map[dashboard.Section]string{
		dashboard.SectionLive:   "f follow  ↑/↓ scroll",
		dashboard.SectionStats:  "w window  r refresh",
		dashboard.SectionErrors: "r reload",
		dashboard.SectionSearch: "/ edit  enter search  t log type",
	}
	return m.styles.Muted.Render(strings.Join([]string{"1-4 or ctrl+l/s/e/f switch", hints[m.section], "q quit"}, " · "))
}
