package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-form-pipeline/internal/capacity"
	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
	"github.com/a3tai/mcp-form-pipeline/internal/quality"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// EnvPrefix is prepended to every environment variable, e.g. MCP_FORM_POLICY
	EnvPrefix = "MCP_FORM"
)

// Config holds all configuration for the form pipeline server and CLI
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDFDirectory resolves relative paths given to the PDF tools
	PDFDirectory string
	// ConfigFile is an optional YAML/JSON/TOML file read before env and flags
	ConfigFile string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Pipeline knobs
	ProximityThreshold   float64
	IoUThreshold         float64
	ConfidenceMargin     float64
	LineHeightMultiplier float64
	FilterPolicy         string
	FontFamily           string
	MaxConcurrency       int

	// pipeline is the nested "pipeline" section of the config file laid over
	// the pipeline defaults; the knobs above are applied on top of it
	pipeline *pipeline.Config
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	p := pipeline.DefaultConfig()
	return &Config{
		Mode:                 ModeStdio,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		PDFDirectory:         currentDir,
		Version:              "1.0.0",
		ServerName:           "mcp-form-pipeline",
		LogLevel:             DefaultLogLevel,
		MaxFileSize:          DefaultMaxFileSize,
		ProximityThreshold:   p.Conflicts.ProximityThreshold,
		IoUThreshold:         p.Conflicts.OverlapThreshold,
		ConfidenceMargin:     p.Conflicts.ConfidenceMargin,
		LineHeightMultiplier: p.Capacity.LineHeightMultiplier,
		FilterPolicy:         string(p.Quality.Policy),
		FontFamily:           p.Capacity.DefaultFontFamily,
		MaxConcurrency:       p.MaxConcurrency,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(pflag.CommandLine, cfg)
	bindFlagsToViper(pflag.CommandLine)
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	return resolve(cfg)
}

// AddPipelineFlags registers the pipeline, logging and config file flags on fs
// for commands that do not run the server
func AddPipelineFlags(fs *pflag.FlagSet) {
	cfg := DefaultConfig()
	definePipelineFlags(fs, cfg)
}

// LoadFromFlagSet builds a configuration from a flag set prepared with
// AddPipelineFlags. fs must already be parsed.
func LoadFromFlagSet(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	bindFlagsToViper(fs)

	return resolve(cfg)
}

func resolve(cfg *Config) (*Config, error) {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	}

	p, err := loadPipelineSection()
	if err != nil {
		return nil, err
	}
	cfg.pipeline = &p
	setKnobDefaults(p)

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadPipelineSection decodes the config file's "pipeline" section onto
// pipeline.DefaultConfig(), so keys the file leaves out keep their defaults
func loadPipelineSection() (pipeline.Config, error) {
	p := pipeline.DefaultConfig()
	if !viper.IsSet("pipeline") {
		return p, nil
	}

	factors := p.Capacity.WidthFactors
	p.Capacity.WidthFactors = nil
	if err := viper.UnmarshalKey("pipeline", &p); err != nil {
		return p, fmt.Errorf("invalid pipeline section in config file: %w", err)
	}

	// viper lowercases keys; entries from the file override the default
	// factor of the family they name
	for family, f := range p.Capacity.WidthFactors {
		factors[capacity.ResolveFamily(family, family)] = f
	}
	p.Capacity.WidthFactors = factors
	return p, nil
}

// setKnobDefaults makes the flat knobs default to the nested pipeline values,
// so a knob overrides the file only when it is set itself
func setKnobDefaults(p pipeline.Config) {
	viper.SetDefault("proximity", p.Conflicts.ProximityThreshold)
	viper.SetDefault("iou", p.Conflicts.OverlapThreshold)
	viper.SetDefault("margin", p.Conflicts.ConfidenceMargin)
	viper.SetDefault("line-height", p.Capacity.LineHeightMultiplier)
	viper.SetDefault("policy", string(p.Quality.Policy))
	viper.SetDefault("font-family", p.Capacity.DefaultFontFamily)
	viper.SetDefault("max-concurrency", p.MaxConcurrency)
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("proximity", cfg.ProximityThreshold)
	viper.SetDefault("iou", cfg.IoUThreshold)
	viper.SetDefault("margin", cfg.ConfidenceMargin)
	viper.SetDefault("line-height", cfg.LineHeightMultiplier)
	viper.SetDefault("policy", cfg.FilterPolicy)
	viper.SetDefault("font-family", cfg.FontFamily)
	viper.SetDefault("max-concurrency", cfg.MaxConcurrency)
}

// defineCommandLineFlags sets up all server command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("dir", cfg.PDFDirectory, "Base directory for relative PDF paths")
	definePipelineFlags(fs, cfg)
}

// definePipelineFlags sets up the flags shared by the server and the CLI
func definePipelineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("config", cfg.ConfigFile, "Optional configuration file (yaml, json or toml)")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.Float64("proximity", cfg.ProximityThreshold, "Center distance in pixels below which two fields are duplicates")
	fs.Float64("iou", cfg.IoUThreshold, "Intersection over union above which two fields are duplicates")
	fs.Float64("margin", cfg.ConfidenceMargin, "Confidence margin a duplicate needs to replace an accepted field")
	fs.Float64("line-height", cfg.LineHeightMultiplier, "Line height as a multiple of the font size")
	fs.String("policy", cfg.FilterPolicy, "Quality filter policy (basic, strict)")
	fs.String("font-family", cfg.FontFamily, "Font family assumed when a field has no font hint")
	fs.Int("max-concurrency", cfg.MaxConcurrency, "Documents processed concurrently in batch runs")
}

// bindFlagsToViper binds every defined flag to viper configuration
func bindFlagsToViper(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Form Pipeline - A Model Context Protocol server that turns form "+
			"detections into validated fields\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --policy=basic --proximity=8      # looser filtering and dedupe\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config=/etc/mcp-form.yaml       # settings from a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081         # SSE server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_MODE             Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_HOST             Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_PORT             Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_DIR              PDF directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_LOG_LEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_POLICY           Quality filter policy\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_MAX_CONCURRENCY  Batch concurrency\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.ConfigFile = viper.GetString("config")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.ProximityThreshold = viper.GetFloat64("proximity")
	cfg.IoUThreshold = viper.GetFloat64("iou")
	cfg.ConfidenceMargin = viper.GetFloat64("margin")
	cfg.LineHeightMultiplier = viper.GetFloat64("line-height")
	cfg.FilterPolicy = viper.GetString("policy")
	cfg.FontFamily = viper.GetString("font-family")
	cfg.MaxConcurrency = viper.GetInt("max-concurrency")
}

// PipelineConfig applies the pipeline knobs to the pipeline section read from
// the config file, or to the pipeline defaults when there is none
func (c *Config) PipelineConfig() pipeline.Config {
	p := pipeline.DefaultConfig()
	if c.pipeline != nil {
		p = *c.pipeline
	}
	p.Conflicts.ProximityThreshold = c.ProximityThreshold
	p.Conflicts.OverlapThreshold = c.IoUThreshold
	p.Conflicts.ConfidenceMargin = c.ConfidenceMargin
	p.Capacity.LineHeightMultiplier = c.LineHeightMultiplier
	p.Capacity.DefaultFontFamily = c.FontFamily
	p.Quality.Policy = quality.Policy(c.FilterPolicy)
	p.MaxConcurrency = c.MaxConcurrency
	return p
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port range only matters for server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// A missing directory is allowed so placeholder paths like ${workspaceRoot} survive
	if _, err := os.Stat(c.PDFDirectory); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if err := c.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	return nil
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
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Policy: %s, Proximity: %v, IoU: %v, Margin: %v, LineHeight: %v, FontFamily: %s, MaxConcurrency: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.FilterPolicy, c.ProximityThreshold, c.IoUThreshold, c.ConfidenceMargin,
		c.LineHeightMultiplier, c.FontFamily, c.MaxConcurrency)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
