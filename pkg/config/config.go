// Package config assembles the split configuration from flags, TREESPLIT_*
// environment variables, an optional YAML file and .env.
package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yumyai/treesplit/logger"
	"github.com/yumyai/treesplit/pkg/decompose"
	"github.com/yumyai/treesplit/pkg/errs"
)

// EnvPrefix prefixes every environment variable read by treesplit.
const EnvPrefix = "TREESPLIT"

// Keys shared by flags, environment and config file.
const (
	KeyTree                = "tree"
	KeyAlignment           = "alignment"
	KeyMaxSize             = "max_size"
	KeyOut                 = "out"
	KeyStrategy            = "strategy"
	KeyAllowExtraSequences = "allow_extra_sequences"
	KeyLineWidth           = "line_width"
	KeyForce               = "force"
	KeyManifest            = "manifest"
	KeyMetricsFile         = "metrics_file"
	KeyLogLevel            = "log_level"
)

// ManifestNone disables the manifest.
const ManifestNone = "none"

// DefaultManifestName is the manifest file created inside the output
// directory when no path is configured.
const DefaultManifestName = "manifest.db"

// Config is the configuration of a split run.
type Config struct {
	TreePath            string
	AlignmentPath       string
	MaxSize             int
	OutputDir           string
	Strategy            decompose.Strategy
	AllowExtraSequences bool
	LineWidth           int
	Overwrite           bool
	ManifestPath        string // empty when disabled
	MetricsFile         string
	LogLevel            string
}

// LoadDotenv loads .env from the working directory into the process
// environment, without overriding variables that are already set.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env found, using local environment")
	}
}

// NewViper returns a viper instance reading TREESPLIT_* variables, with
// the defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyStrategy, string(decompose.StrategyPack))
	v.SetDefault(KeyLineWidth, 0)
	v.SetDefault(KeyLogLevel, "info")
	return v
}

// ReadFile merges a YAML (or any viper supported) config file.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return &errs.IOError{Op: "read", Path: path, Err: err}
	}
	return nil
}

// Load reads a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	strategy, err := decompose.ParseStrategy(v.GetString(KeyStrategy))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		TreePath:            v.GetString(KeyTree),
		AlignmentPath:       v.GetString(KeyAlignment),
		MaxSize:             v.GetInt(KeyMaxSize),
		OutputDir:           v.GetString(KeyOut),
		Strategy:            strategy,
		AllowExtraSequences: v.GetBool(KeyAllowExtraSequences),
		LineWidth:           v.GetInt(KeyLineWidth),
		Overwrite:           v.GetBool(KeyForce),
		MetricsFile:         v.GetString(KeyMetricsFile),
		LogLevel:            v.GetString(KeyLogLevel),
	}
	cfg.ManifestPath = manifestPath(v.GetString(KeyManifest), cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func manifestPath(value, out string) string {
	switch {
	case strings.EqualFold(value, ManifestNone):
		return ""
	case value != "":
		return value
	case out != "":
		return filepath.Join(out, DefaultManifestName)
	}
	return ""
}

// Validate checks the configuration before any file is touched.
func (c *Config) Validate() error {
	switch {
	case c.TreePath == "":
		return errs.NewConfigurationError(KeyTree, "input tree path is required")
	case c.AlignmentPath == "":
		return errs.NewConfigurationError(KeyAlignment, "input alignment path is required")
	case c.OutputDir == "":
		return errs.NewConfigurationError(KeyOut, "output directory is required")
	case c.MaxSize < 1:
		return errs.NewConfigurationError(KeyMaxSize, "must be a positive integer, got %d", c.MaxSize)
	case c.LineWidth < 0:
		return errs.NewConfigurationError(KeyLineWidth, "must not be negative, got %d", c.LineWidth)
	}
	if _, err := decompose.ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return errs.NewConfigurationError(KeyLogLevel, "%v", err)
		}
	}
	return nil
}

// DecomposeOptions returns the options for the decomposer.
func (c *Config) DecomposeOptions() decompose.Options {
	return decompose.Options{MaxSize: c.MaxSize, Strategy: c.Strategy}
}
