// Package config loads the doodle server configuration: YAML file on top of
// defaults, then environment overrides, then validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/doodle/dbopen"
	"github.com/hazyhaar/doodle/imagegen"
	"github.com/hazyhaar/doodle/safe"
	"github.com/hazyhaar/doodle/trace"
)

// Config holds the full server configuration.
type Config struct {
	Listen       string `yaml:"listen"`
	SaveDir      string `yaml:"save_dir"`
	MaxBodyMB    int    `yaml:"max_body_mb"`
	SanitizeText bool   `yaml:"sanitize_text"`
	LogLevel     string `yaml:"log_level"` // debug | info | warn | error
	AuditDB      string `yaml:"audit_db"`  // empty disables the audit trail
	AuditBuffer  int    `yaml:"audit_buffer"`
	TraceSQL     bool   `yaml:"trace_sql"` // log audit store SQL at debug level
	MCP          bool   `yaml:"mcp"`

	// SQLite tuning for the audit database.
	AuditBusyTimeoutMS int    `yaml:"audit_busy_timeout_ms"`
	AuditSynchronous   string `yaml:"audit_synchronous"` // OFF | NORMAL | FULL | EXTRA

	// EditModel backs POST /edit, Edit2Model backs POST /edit2 and the MCP tool.
	EditModel  imagegen.Config `yaml:"edit_model"`
	Edit2Model imagegen.Config `yaml:"edit2_model"`

	// APIKey is never read from the file.
	APIKey string `yaml:"-"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func f32(v float32) *float32 { return &v }

// Default returns the built-in configuration. Safety filters are disabled
// on both models, matching the historical behaviour; operators can turn
// them back on per model.
func Default() *Config {
	return &Config{
		Listen:      ":3000",
		SaveDir:     "edited_images",
		MaxBodyMB:   20,
		LogLevel:    "info",
		AuditBuffer: 1000,
		MCP:         true,

		AuditBusyTimeoutMS: 10000,
		AuditSynchronous:   "NORMAL",

		EditModel: imagegen.Config{
			Model:                "gemini-2.0-flash-exp-image-generation",
			Mode:                 imagegen.ModeGenerate,
			DisableSafetyFilters: true,
		},
		Edit2Model: imagegen.Config{
			Model:                "gemini-2.0-flash-exp",
			Mode:                 imagegen.ModeChat,
			Temperature:          f32(1),
			TopP:                 f32(0.95),
			TopK:                 f32(40),
			DisableSafetyFilters: true,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads path (when non-empty) over Default, applies environment
// overrides from os.Getenv and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from PORT, GEMINI_API_KEY, SAVE_DIR, AUDIT_DB
// and LOG_LEVEL. Unset variables leave the field alone. The API key is
// taken as-is, empty included.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := getenv("SAVE_DIR"); v != "" {
		c.SaveDir = v
	}
	if v := getenv("AUDIT_DB"); v != "" {
		c.AuditDB = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.APIKey = getenv("GEMINI_API_KEY")
	c.EditModel.APIKey = c.APIKey
	c.Edit2Model.APIKey = c.APIKey
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.SaveDir == "" {
		return fmt.Errorf("save_dir is required")
	}
	if c.MaxBodyMB <= 0 {
		return fmt.Errorf("max_body_mb must be > 0")
	}
	if c.AuditBuffer <= 0 {
		return fmt.Errorf("audit_buffer must be > 0")
	}
	if c.AuditBusyTimeoutMS < 0 {
		return fmt.Errorf("audit_busy_timeout_ms must be >= 0")
	}
	switch strings.ToUpper(c.AuditSynchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("unsupported audit_synchronous %q (use OFF, NORMAL, FULL or EXTRA)", c.AuditSynchronous)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for name, m := range map[string]imagegen.Config{"edit_model": c.EditModel, "edit2_model": c.Edit2Model} {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if m.BaseURL != "" {
			if err := safe.ValidateHTTPURL(m.BaseURL); err != nil {
				return fmt.Errorf("%s: base_url: %w", name, err)
			}
		}
	}
	return nil
}

// AuditDBOptions returns the dbopen options derived from the audit settings.
// The caller adds the schema.
func (c *Config) AuditDBOptions() []dbopen.Option {
	opts := []dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(c.AuditBusyTimeoutMS),
		dbopen.WithSynchronous(strings.ToUpper(c.AuditSynchronous)),
	}
	if c.TraceSQL {
		opts = append(opts, dbopen.WithDriver(trace.DriverName))
	}
	return opts
}

// MaxBodyBytes returns the JSON body limit in bytes.
func (c *Config) MaxBodyBytes() int64 { return int64(c.MaxBodyMB) * 1024 * 1024 }

// ParseLevel maps debug|info|warn|error to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", s)
	}
}
