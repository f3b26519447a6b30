package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"logdash/internal/db"
)

// server holds the application dependencies
type server struct {
	db        *db.DB
	limiter   *ipRateLimiter
	hub       *hub
	keepalive time.Duration
}

type options struct {
	addr      string
	dbPath    string
	retention time.Duration
	keepalive time.Duration
	rate      float64
	burst     int
	demoRate  float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "logservice",
		Short:        "Log backend serving the logdash dashboard",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, optionsFrom(v))
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "HTTP service address")
	f.String("db", "logs.db", "Path to SQLite database")
	f.Duration("retention", 30*24*time.Hour, "Delete records older than this")
	f.Duration("keepalive", defaultKeepalive, "Idle interval between live stream keepalives")
	f.Float64("rate", 100, "Ingest requests per second allowed per client IP")
	f.Int("burst", 200, "Ingest burst allowed per client IP")
	f.Float64("demo-rate", 0, "Generate this many synthetic access records per second (0 disables)")

	v.SetEnvPrefix("LOGSERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	cobra.CheckErr(v.BindPFlags(f))

	return cmd
}

func optionsFrom(v *viper.Viper) options {
	return options{
		addr:      v.GetString("addr"),
		dbPath:    v.GetString("db"),
		retention: v.GetDuration("retention"),
		keepalive: v.GetDuration("keepalive"),
		rate:      v.GetFloat64("rate"),
		burst:     v.GetInt("burst"),
		demoRate:  v.GetFloat64("demo-rate"),
	}
}

func serve(ctx context.Context, opts options) error {
	database, err := db.New(opts.dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer database.Close()

	srv := &server{
		db:        database,
		limiter:   newIPRateLimiter(rate.Limit(opts.rate), opts.burst),
		hub:       newHub(),
		keepalive: opts.keepalive,
	}

	go srv.hub.run(ctx)
	go srv.cleanupRoutine(ctx, opts.retention)
	if opts.demoRate > 0 {
		log.Printf("Generating %.1f demo records per second", opts.demoRate)
		go srv.runDemo(ctx, opts.demoRate)
	}

	httpServer := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()

		log.Println("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("Log service starting on %s", opts.addr)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	// Ingestion endpoint (used by log shippers and the demo generator)
	mux.HandleFunc("/api/ingest", s.handleIngest)

	// Live feed
	mux.HandleFunc("/api/logs/live", s.handleLive)
	mux.HandleFunc("/api/logs/ws", s.handleWebSocket)

	// Query endpoints (used by the dashboard)
	mux.HandleFunc("/api/logs/recent", s.handleRecent)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/errors", s.handleErrors)
	mux.HandleFunc("/api/search", s.handleSearch)

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return corsMiddleware(requestID(mux))
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestID echoes the caller's X-Request-ID, minting one when absent.
// The writer is passed through untouched so streaming handlers can still
// flush and hijack.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "request_id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *server) cleanupRoutine(ctx context.Context, retention time.Duration) {
	// Run cleanup immediately on startup
	s.runCleanup(ctx, retention)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx, retention)
		}
	}
}

func (s *server) runCleanup(ctx context.Context, retention time.Duration) {
	if retention > 0 {
		deleted, err := s.db.DeleteOldLogs(ctx, retention)
		if err != nil {
			log.Printf("Cleanup failed: %v", err)
		} else if deleted > 0 {
			cleanupDeletedTotal.Add(float64(deleted))
			log.Printf("Cleaned up %d old logs", deleted)
		}
	}
	if s.limiter != nil {
		s.limiter.prune(limiterIdle)
	}
}
