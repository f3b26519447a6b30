package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"logdash/internal/client"
	"logdash/internal/config"
	"logdash/internal/render"
)

const version = "0.1.0"

// fullScreen marks commands that own the terminal; their diagnostics never
// go to stderr.
const fullScreen = "fullscreen"

// app carries the state shared by every command.
type app struct {
	cfgFile   string
	server    string
	transport string
	logFile   string
	debug     bool
	noColor   bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "logdash",
		Short: "Terminal dashboard for web server logs",
		Long: `logdash watches a log backend from the terminal.

Tail access logs as they arrive, chart traffic over a time window, browse
recent errors by severity, and search the access or error log.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.logdash/config.yaml)")
	pf.StringVar(&a.server, "server", "", "backend base URL (overrides config)")
	pf.StringVar(&a.transport, "transport", "", "live transport: sse or websocket (overrides config)")
	pf.StringVar(&a.logFile, "log-file", "", "append diagnostics to this file")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newDashCmd(a),
		newTailCmd(a),
		newStatsCmd(a),
		newErrorsCmd(a),
		newSearchCmd(a),
		newRecentCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.server != "" {
		cfg.ServerURL = a.server
	}
	if a.transport != "" {
		cfg.Transport = a.transport
	}
	if a.noColor {
		cfg.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	return a.setupLogger(cmd)
}

func (a *app) setupLogger(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}

	var w io.Writer = cmd.ErrOrStderr()
	switch {
	case a.logFile != "":
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
		a.closeLog = f.Close
	case cmd.Annotations[fullScreen] == "true":
		w = io.Discard
	}

	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.ServerURL)
}

func (a *app) printer(cmd *cobra.Command) *render.Printer {
	return render.New(cmd.OutOrStdout(), a.cfg.NoColor)
}

// signalContext is cancelled on interrupt or termination.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
