package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/branchq/internal/autocall"
	"github.com/me/branchq/internal/branch"
	"github.com/me/branchq/internal/config"
	"github.com/me/branchq/internal/dispatch"
	"github.com/me/branchq/internal/events"
	"github.com/me/branchq/internal/journal"
	"github.com/me/branchq/internal/lifecycle"
	"github.com/me/branchq/internal/logging"
	"github.com/me/branchq/internal/script"
	"github.com/me/branchq/internal/segmentation"
	"github.com/me/branchq/internal/server"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.BranchDir, "branch-dir", cfg.BranchDir, "Directory of branch topology YAML files")
	flag.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite journal path (empty disables persistence)")
	flag.StringVar(&cfg.DispatchRule, "dispatch-rule", cfg.DispatchRule, "Dispatch rule: simple, max_waiting_time, max_life_time, custom")
	flag.StringVar(&cfg.PolicyURL, "policy-url", cfg.PolicyURL, "Remote dispatch policy URL (custom rule only)")
	flag.StringVar(&cfg.DataBusURL, "data-bus-url", cfg.DataBusURL, "Data bus URL (empty logs events locally)")
	flag.StringVar(&cfg.SenderID, "sender-id", cfg.SenderID, "Sender identity stamped on published events")
	flag.DurationVar(&cfg.ScriptTimeout, "script-timeout", cfg.ScriptTimeout, "Segmentation script execution budget")
	flag.DurationVar(&cfg.AutoCallInterval, "autocall-interval", cfg.AutoCallInterval, "Auto-call poll interval")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if cfg.BranchDir == "" {
		fmt.Fprintln(os.Stderr, "--branch-dir is required")
		os.Exit(1)
	}

	// Open journal and run migrations.
	var jnl journal.Journal = journal.Nop{}
	var journalSink *journal.Sink
	if cfg.JournalPath != "" {
		sj, err := journal.NewSQLiteJournal(cfg.JournalPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
			os.Exit(1)
		}
		defer sj.Close()

		if err := sj.Migrate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "migrate journal: %v\n", err)
			os.Exit(1)
		}
		logger.Info("journal ready", "path", cfg.JournalPath)
		jnl = sj
		journalSink = journal.NewSink(sj, logger)
	}

	// Load branch topologies.
	branches, err := branch.LoadBranchDir(cfg.BranchDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load branches: %v\n", err)
		os.Exit(1)
	}
	if len(branches) == 0 {
		fmt.Fprintf(os.Stderr, "no branch files in %s\n", cfg.BranchDir)
		os.Exit(1)
	}

	// Event publisher. The journal sink rides along with whichever
	// primary sink is configured.
	var bus events.Publisher
	if cfg.DataBusURL != "" {
		bus = events.NewDataBus(cfg.DataBusURL, cfg.SenderID, logger)
		logger.Info("data bus configured", "url", cfg.DataBusURL)
	} else {
		bus = events.NewLogSink(logger)
	}
	if journalSink != nil {
		bus = events.Multi{bus, journalSink}
	}

	// Dispatch rule.
	var policy dispatch.PolicyClient
	if cfg.DispatchRule == dispatch.RuleCustom {
		if cfg.PolicyURL == "" {
			fmt.Fprintln(os.Stderr, "--policy-url is required with the custom dispatch rule")
			os.Exit(1)
		}
		policy = dispatch.NewHTTPPolicyClient(cfg.PolicyURL)
	}
	rule, err := dispatch.New(cfg.DispatchRule, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatch rule: %v\n", err)
		os.Exit(1)
	}

	// Assemble the branch service.
	engine := script.NewEngine(cfg.ScriptTimeout, logger)
	resolver := segmentation.NewResolver(engine, logger)
	svc := branch.NewService(lifecycle.NewMachine(logger), resolver, rule, bus, jnl, logger)
	for _, b := range branches {
		svc.AddBranch(b)
		logger.Info("branch loaded", "branch", b.ID, "queues", len(b.Queues), "service_points", len(b.ServicePoints))
	}

	srv := server.New(cfg, svc, logger, server.WithJournal(jnl))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the auto-call loop in background.
	loop := autocall.NewLoop(svc, autocall.Config{PollInterval: cfg.AutoCallInterval}, logger)
	go loop.Start(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop the auto-call loop before the HTTP server.
	if err := loop.Stop(); err != nil {
		logger.Error("auto-call stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
