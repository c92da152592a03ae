package shadow

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config holds document-wide settings.
type Config struct {
	// CSSImportTimeoutMS is the default per-import fetch timeout for
	// classes that do not set one.
	CSSImportTimeoutMS int `json:"cssImportTimeout" mapstructure:"css_import_timeout"`
	// FrameRate drives the default frame clock.
	FrameRate int `json:"frameRate" mapstructure:"frame_rate"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel" mapstructure:"log_level"`
	// LogFormat is text or json.
	LogFormat string `json:"logFormat" mapstructure:"log_format"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		CSSImportTimeoutMS: 5000,
		FrameRate:          60,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// LoadConfig reads a JSON file, which may contain comments and trailing
// commas. Fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes JSONC config data over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.CSSImportTimeoutMS <= 0 {
		cfg.CSSImportTimeoutMS = 5000
	}
	return cfg, nil
}

// Level returns the slog level for LogLevel. Unknown names are info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds a logger writing to w in the configured format.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
