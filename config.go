package docximage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the command line renderer and of hosts
// built from a configuration file.
type Config struct {
	// Centered is the default alignment of "%name" placeholders.
	Centered bool `yaml:"centered"`
	// Concurrency bounds the placeholders of one part resolved at once by
	// ApplyContext. 1 keeps document order.
	Concurrency int `yaml:"concurrency"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// ImageDir is the base directory of relative image paths.
	ImageDir string `yaml:"image_dir"`
	// MaxWidth scales down images wider than this many pixels. 0 disables it.
	MaxWidth float64 `yaml:"max_width"`
	// Async renders through ApplyContext with asynchronous accessors.
	Async bool `yaml:"async"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Centered:    false,
		Concurrency: 1,
		LogLevel:    "info",
		ImageDir:    ".",
		MaxWidth:    0,
		Async:       false,
	}
}

// LoadConfig reads a YAML configuration file over the defaults, applies the
// DOCXIMAGE_* environment overrides and validates the result. An empty path
// skips the file.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configPath, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s: %w", configPath, err)
		}
	}

	config.applyEnvironment()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	config.applyEnvironment()
	return config
}

func (c *Config) applyEnvironment() {
	// DOCXIMAGE_CENTERED
	if val := os.Getenv("DOCXIMAGE_CENTERED"); val != "" {
		c.Centered = parseBool(val)
	}

	// DOCXIMAGE_CONCURRENCY
	if val := os.Getenv("DOCXIMAGE_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Concurrency = n
		}
	}

	// DOCXIMAGE_LOG_LEVEL
	if val := os.Getenv("DOCXIMAGE_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}

	// DOCXIMAGE_IMAGE_DIR
	if val := os.Getenv("DOCXIMAGE_IMAGE_DIR"); val != "" {
		c.ImageDir = val
	}

	// DOCXIMAGE_MAX_WIDTH
	if val := os.Getenv("DOCXIMAGE_MAX_WIDTH"); val != "" {
		if w, err := strconv.ParseFloat(val, 64); err == nil {
			c.MaxWidth = w
		}
	}

	// DOCXIMAGE_ASYNC
	if val := os.Getenv("DOCXIMAGE_ASYNC"); val != "" {
		c.Async = parseBool(val)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	if c.MaxWidth < 0 {
		return errors.New("max width cannot be negative")
	}

	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, ok := logLevels[strings.ToLower(c.LogLevel)]
	if !ok {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ImageOptions returns the module options matching c: images are read from
// ImageDir and sized from their headers, asynchronously when Async is set.
func (c *Config) ImageOptions(logger *slog.Logger) ImageOptions {
	getImage := FileImageGetter(c.ImageDir)
	var getSize SizeGetter = DecodeSize
	if c.MaxWidth > 0 {
		getSize = MaxWidthSize(c.MaxWidth)
	}

	if c.Async {
		getImage = AsyncImageGetter(getImage)
		getSize = AsyncSizeGetter(getSize)
	}

	return ImageOptions{
		Centered: c.Centered,
		GetImage: getImage,
		GetSize:  getSize,
		Logger:   logger,
	}
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
