package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentforge/previewd/internal/config"
	"github.com/agentforge/previewd/internal/detect"
	historysqlite "github.com/agentforge/previewd/internal/history/sqlite"
	"github.com/agentforge/previewd/internal/ports"
	"github.com/agentforge/previewd/internal/run"
	"github.com/agentforge/previewd/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server",
	Long: `Start the previewd HTTP server.

The API lives under /api; previews are proxied at /api/proxy/{run_id}.

Examples:
  previewd serve
  previewd serve --port 9001`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Detector rules: built-in defaults unless a rules file is configured.
	rules := detect.DefaultRules()
	if cfg.Detect.RulesPath != "" {
		rules, err = detect.LoadRules(cfg.Detect.RulesPath)
		if err != nil {
			return fmt.Errorf("loading detector rules: %w", err)
		}
	}

	// Open the run history store
	hist, err := historysqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer hist.Close()

	registry := run.NewRegistry()
	allocator := ports.NewAllocator(cfg.Preview.BasePort, cfg.Preview.MaxPort)
	sup := run.NewSupervisor(registry, allocator, detect.New(rules), hist, run.Timeouts{
		GracePeriod:    cfg.Preview.GracePeriod,
		InstallTimeout: cfg.Preview.InstallTimeout,
		TermTimeout:    cfg.Preview.TermTimeout,
		KillTimeout:    cfg.Preview.KillTimeout,
	})

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, sup, hist)

	// Graceful shutdown on SIGINT/SIGTERM; live runs are torn down first.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	return srv.Start(port)
}
