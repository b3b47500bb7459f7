package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/a3tai/mcp-pdf-overlay/internal/config"
	"github.com/a3tai/mcp-pdf-overlay/internal/mcp"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
	"github.com/a3tai/mcp-pdf-overlay/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger writes to stderr in every mode; in stdio mode stdout belongs to
// the MCP protocol
func newLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:     cfg.SlogLevel(),
		AddSource: cfg.IsDebug() && cfg.IsServerMode(),
	}))
}

// newRegistry returns the registry exposed on /metrics
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadFromArgs(args)
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)
	logger.Debug("starting", "config", cfg.String())

	reg := newRegistry()
	shutdownTelemetry, err := telemetry.Start(ctx, telemetry.Options{
		ServiceName:   cfg.ServerName,
		Version:       cfg.Version,
		Registerer:    reg,
		TraceEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		logger.Error("failed to start telemetry", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	pdfService, err := pdf.NewService(pdf.Options{
		TemplateDirectory: cfg.TemplateDirectory,
		OutputDirectory:   cfg.OutputDirectory,
		DefaultFieldMap:   cfg.DefaultFieldMap,
		MaxFileSize:       cfg.MaxFileSize,
		FetchTimeout:      cfg.FetchTimeout,
		AllowRemote:       cfg.AllowRemote,
		TemplateCache:     cfg.TemplateCache,
		Workers:           cfg.Workers,
		Logger:            logger,
		Registerer:        reg,
	})
	if err != nil {
		logger.Error("failed to create PDF service", "error", err)
		return 1
	}

	server, err := mcp.NewServer(cfg, pdfService, mcp.WithLogger(logger), mcp.WithGatherer(reg))
	if err != nil {
		logger.Error("failed to create MCP server", "error", err)
		return 1
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func main() {
	// In stdio mode the parent process usually ends us by closing stdin;
	// signals cover server mode and manual runs.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Overlay\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
