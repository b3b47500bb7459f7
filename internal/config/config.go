package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultFetchTimeout  = 30 * time.Second
	DefaultTemplateCache = 16
	DefaultWorkers       = 4

	// EnvPrefix is prepended to every environment variable, e.g. MCP_PDF_OVERLAY_PORT
	EnvPrefix = "MCP_PDF_OVERLAY"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned by LoadFromArgs when --version was passed
var ErrVersionRequested = errors.New("version requested")

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config holds all configuration for the PDF overlay server
type Config struct {
	// Server configuration
	Mode        string // "server" or "stdio"
	Host        string
	Port        int
	CORSOrigins []string

	// Template configuration
	TemplateDirectory string
	OutputDirectory   string // defaults to <TemplateDirectory>/filled
	DefaultFieldMap   string
	MaxFileSize       int64 // Maximum template size in bytes
	FetchTimeout      time.Duration
	AllowRemote       bool
	TemplateCache     int // LRU entries, 0 disables
	Workers           int

	// Application configuration
	Version      string
	ServerName   string
	LogLevel     string
	OTelEndpoint string // OTLP gRPC collector for traces, empty keeps spans local
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio, // stdio is what MCP clients launch
		Host:              DefaultHost,
		Port:              DefaultPort,
		CORSOrigins:       []string{"*"},
		TemplateDirectory: currentDir,
		MaxFileSize:       DefaultMaxFileSize,
		FetchTimeout:      DefaultFetchTimeout,
		TemplateCache:     DefaultTemplateCache,
		Workers:           DefaultWorkers,
		Version:           "1.0.0",
		ServerName:        "mcp-pdf-overlay",
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses the process command line and environment
func LoadFromFlags() (*Config, error) {
	return LoadFromArgs(os.Args)
}

// LoadFromArgs parses args (program name first) layered over environment
// variables and defaults, then validates the result.
func LoadFromArgs(args []string) (*Config, error) {
	cfg := DefaultConfig()
	program := "mcp-pdf-overlay"
	if len(args) > 0 {
		program = filepath.Base(args[0])
		args = args[1:]
	}

	if versionRequested(args) {
		return nil, ErrVersionRequested
	}

	v := viper.New()
	setupViperEnvironment(v, cfg)

	flags := pflag.NewFlagSet(program, pflag.ContinueOnError)
	defineCommandLineFlags(flags, cfg)
	flags.Usage = usage(flags, program, os.Stderr)
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	populateConfigFromViper(v, cfg)

	if cfg.TemplateDirectory != "" {
		if abs, err := filepath.Abs(cfg.TemplateDirectory); err == nil {
			cfg.TemplateDirectory = abs
		}
	}
	if cfg.OutputDirectory == "" && cfg.TemplateDirectory != "" {
		cfg.OutputDirectory = filepath.Join(cfg.TemplateDirectory, "filled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.TemplateDirectory)
	v.SetDefault("outdir", cfg.OutputDirectory)
	v.SetDefault("fieldmap", cfg.DefaultFieldMap)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
	v.SetDefault("fetchtimeout", cfg.FetchTimeout)
	v.SetDefault("allowremote", cfg.AllowRemote)
	v.SetDefault("templatecache", cfg.TemplateCache)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("cors", strings.Join(cfg.CORSOrigins, ","))
	v.SetDefault("otelendpoint", cfg.OTelEndpoint)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	flags.String("host", cfg.Host, "Server host address (server mode only)")
	flags.Int("port", cfg.Port, "Server port (server mode only)")
	flags.String("dir", cfg.TemplateDirectory, "Directory containing PDF templates and field maps")
	flags.String("outdir", cfg.OutputDirectory, "Directory for filled PDFs (default <dir>/filled)")
	flags.String("fieldmap", cfg.DefaultFieldMap, "Field map used when a request names none")
	flags.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.Int64("maxfilesize", cfg.MaxFileSize, "Maximum template size in bytes")
	flags.Duration("fetchtimeout", cfg.FetchTimeout, "Timeout for fetching remote templates")
	flags.Bool("allowremote", cfg.AllowRemote, "Allow http(s) template references")
	flags.Int("templatecache", cfg.TemplateCache, "Number of templates kept in memory (0 disables)")
	flags.Int("workers", cfg.Workers, "Concurrent fills in a batch")
	flags.String("cors", strings.Join(cfg.CORSOrigins, ","), "Comma-separated allowed CORS origins (server mode only)")
	flags.String("otelendpoint", cfg.OTelEndpoint, "OTLP gRPC collector address for traces, e.g. localhost:4317")
}

func usage(flags *pflag.FlagSet, program string, w io.Writer) func() {
	return func() {
		fmt.Fprintf(w, "Usage of %s:\n", program)
		fmt.Fprintf(w, "\nMCP PDF Overlay - A Model Context Protocol server that fills flat PDF forms\n\n")
		fmt.Fprintf(w, "Options:\n")
		flags.SetOutput(w)
		flags.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s --dir=/srv/forms                          # stdio mode\n", program)
		fmt.Fprintf(w, "  %s --mode=server --dir=/srv/forms            # HTTP API and MCP over SSE\n", program)
		fmt.Fprintf(w, "  %s --mode=server --allowremote --port=8081   # accept https template URLs\n", program)
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		for _, key := range []string{"MODE", "HOST", "PORT", "DIR", "OUTDIR", "LOGLEVEL", "MAXFILESIZE", "ALLOWREMOTE", "WORKERS", "CORS", "OTELENDPOINT"} {
			fmt.Fprintf(w, "  %s_%s\n", EnvPrefix, key)
		}
	}
}

func versionRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.TemplateDirectory = v.GetString("dir")
	cfg.OutputDirectory = v.GetString("outdir")
	cfg.DefaultFieldMap = v.GetString("fieldmap")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.FetchTimeout = v.GetDuration("fetchtimeout")
	cfg.AllowRemote = v.GetBool("allowremote")
	cfg.TemplateCache = v.GetInt("templatecache")
	cfg.Workers = v.GetInt("workers")
	cfg.CORSOrigins = splitOrigins(v.GetString("cors"))
	cfg.OTelEndpoint = v.GetString("otelendpoint")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks if the configuration is valid. Directories are not
// created here so placeholder paths survive until first use.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.TemplateDirectory == "" {
		return errors.New("template directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.FetchTimeout < 0 {
		return errors.New("fetch timeout cannot be negative")
	}

	if c.TemplateCache < 0 {
		return errors.New("template cache size cannot be negative")
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateDirectory: %s, OutputDirectory: %s, "+
		"LogLevel: %s, MaxFileSize: %d, AllowRemote: %t, Workers: %d}",
		c.Mode, c.Host, c.Port, c.TemplateDirectory, c.OutputDirectory,
		c.LogLevel, c.MaxFileSize, c.AllowRemote, c.Workers)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
