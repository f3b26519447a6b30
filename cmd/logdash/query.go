package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"logdash/internal/dashboard"
	"logdash/internal/models"
	"logdash/internal/render"
	"logdash/internal/tui"
)

// topClients is how many client addresses the stats summary lists.
const topClients = 5

func newStatsCmd(a *app) *cobra.Command {
	var (
		hours int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show traffic breakdowns for a time window",
		Example: `  logdash stats
  logdash stats --hours 24
  logdash stats --hours 168 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			if watch {
				opts, err := a.dashboardOptions(cmd, hours)
				if err != nil {
					return err
				}
				opts.Initial = dashboard.SectionStats
				ctrl, err := dashboard.New(opts)
				if err != nil {
					return err
				}
				ctrl.Run(ctx)
				return nil
			}

			if hours == 0 {
				hours = a.cfg.StatsHours
			}
			if !dashboard.ValidWindow(hours) {
				return fmt.Errorf("%w: %d hours (choose one of %v)", dashboard.ErrInvalidWindow, hours, dashboard.StatsWindows)
			}
			snap, err := a.client().Stats(ctx, hours)
			if err != nil {
				return err
			}
			return renderStats(a.printer(cmd), snap, hours)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "time window in hours: 1, 6, 24 or 168 (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep refreshing until interrupted")
	return cmd
}

// renderStats prints one snapshot the way a stats refresh does, followed by
// a traffic summary.
func renderStats(p *render.Printer, snap models.StatsSnapshot, hours int) error {
	sinks := p.Sinks().Stats
	byPath, byStatus, byMethod := dashboard.SeriesFor(snap)
	if err := sinks.ByPath.Render(byPath); err != nil {
		return err
	}
	if err := sinks.ByStatus.Render(byStatus); err != nil {
		return err
	}
	if err := sinks.ByMethod.Render(byMethod); err != nil {
		return err
	}

	if len(snap.RequestsByIP) > 0 {
		table := render.NewTable(p, []string{"Top Clients", "Requests"})
		for i, c := range models.SortedCounts(snap.RequestsByIP) {
			if i == topClients {
				break
			}
			table.AddRow([]string{c.Label, strconv.Itoa(c.Value)})
		}
		table.Render()
	}

	p.Info("%d requests, %d server errors, %d bytes in the last %s",
		snap.Total(), snap.Errors, snap.TotalBytes, tui.WindowLabel(hours))
	return nil
}

func newErrorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "Show recent errors grouped by severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			digest, err := a.client().Errors(ctx)
			if err != nil {
				return err
			}

			sink := a.printer(cmd).Sinks().Digest
			if groups := digest.Groups(); len(groups) > 0 {
				sink.RenderDigest(groups)
			} else {
				sink.RenderEmpty()
			}
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var logType string

	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search the access or error log",
		Example: `  logdash search /login
  logdash search "upstream timed out" --type error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if logType == "" {
				logType = a.cfg.LogType
			}
			lt, err := models.ParseLogType(logType)
			if err != nil {
				return err
			}
			query := models.SearchQuery{Pattern: args[0], LogType: lt}
			if query.Blank() {
				return fmt.Errorf("search pattern must not be empty")
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			lines, err := a.client().Search(ctx, query)
			if err != nil {
				return err
			}

			sink := a.printer(cmd).Sinks().Search
			if len(lines) == 0 {
				sink.RenderEmpty()
			} else {
				sink.RenderResults(lines)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logType, "type", "t", "", "log to search: access or error (default from config)")
	return cmd
}

func newRecentCmd(a *app) *cobra.Command {
	var (
		logType string
		lines   int
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logType == "" {
				logType = a.cfg.LogType
			}
			lt, err := models.ParseLogType(logType)
			if err != nil {
				return err
			}
			if lines <= 0 {
				return fmt.Errorf("--lines must be positive, got %d", lines)
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			p := a.printer(cmd)
			out := cmd.OutOrStdout()
			switch lt {
			case models.LogTypeError:
				entries, err := a.client().RecentErrors(ctx, lines)
				if err != nil {
					return err
				}
				for _, line := range entries {
					fmt.Fprintln(out, line)
				}
			default:
				events, err := a.client().RecentAccess(ctx, lines)
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Fprintln(out, p.Event(e))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logType, "type", "t", "", "log to read: access or error (default from config)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of entries")
	return cmd
}
