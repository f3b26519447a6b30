package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"logdash/internal/dashboard"
	"logdash/internal/models"
	"logdash/internal/stream"
	"logdash/internal/tui"
)

func newDashCmd(a *app) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the interactive dashboard",
		Long: `Open the full-screen dashboard with live, stats, errors and search views.

Keys: 1-4 or ctrl+l/s/e/f switch views, w cycles the stats window, t toggles
the search log type, / focuses the search input, r reloads, q quits.`,
		Annotations: map[string]string{fullScreen: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.dashboardOptions(cmd, hours)
			if err != nil {
				return err
			}
			logType, err := models.ParseLogType(a.cfg.LogType)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			return tui.Run(ctx, opts, logType)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "initial stats window in hours (default from config)")
	return cmd
}

func newTailCmd(a *app) *cobra.Command {
	var backlog int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the live access log",
		Example: `  logdash tail
  logdash tail --recent 50 --transport websocket`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			p := a.printer(cmd)
			if backlog > 0 {
				events, err := a.client().RecentAccess(ctx, backlog)
				if err != nil {
					return fmt.Errorf("load recent entries: %w", err)
				}
				for _, e := range events {
					fmt.Fprintln(cmd.OutOrStdout(), p.Event(e))
				}
			}

			opts, err := a.dashboardOptions(cmd, 0)
			if err != nil {
				return err
			}
			ended := make(chan error, 1)
			opts.Sinks = p.Sinks()
			opts.Sinks.Live = &tailSink{LiveSink: opts.Sinks.Live, ended: ended}

			ctrl, err := dashboard.New(opts)
			if err != nil {
				return err
			}
			ctrl.Start()
			defer ctrl.Close()

			select {
			case <-ctx.Done():
				return nil
			case err := <-ended:
				return err
			}
		},
	}

	cmd.Flags().IntVar(&backlog, "recent", 0, "print this many recent entries before following")
	return cmd
}

// tailSink ends the tail command when the stream fails.
type tailSink struct {
	dashboard.LiveSink
	ended chan<- error
}

func (s *tailSink) StreamFailed(err error) {
	s.LiveSink.StreamFailed(err)
	select {
	case s.ended <- fmt.Errorf("live stream ended: %w", err):
	default:
	}
}

// dashboardOptions builds controller options from the effective config.
// hours of zero selects the configured stats window.
func (a *app) dashboardOptions(cmd *cobra.Command, hours int) (dashboard.Options, error) {
	transport, err := stream.New(a.cfg.Transport, a.cfg.ServerURL)
	if err != nil {
		return dashboard.Options{}, err
	}
	if hours == 0 {
		hours = a.cfg.StatsHours
	}
	if !dashboard.ValidWindow(hours) {
		return dashboard.Options{}, fmt.Errorf("%w: %d hours (choose one of %v)", dashboard.ErrInvalidWindow, hours, dashboard.StatsWindows)
	}
	return dashboard.Options{
		Backend:         a.client(),
		Transport:       transport,
		Sinks:           a.printer(cmd).Sinks(),
		RefreshInterval: a.cfg.RefreshInterval,
		StatsWindow:     hours,
		Logger:          a.logger,
	}, nil
}
