package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/finboard-dev/finboard/internal/coerce"
	"github.com/finboard-dev/finboard/internal/schema"
)

// FileName is the workspace configuration file.
const FileName = "finboard.yaml"

// EnvPrefix prefixes environment overrides, e.g. FINBOARD_LEDGER_PATH.
const EnvPrefix = "FINBOARD"

// Config represents the top-level finboard.yaml configuration.
type Config struct {
	Ledger  LedgerConfig              `yaml:"ledger" mapstructure:"ledger"`
	Columns schema.Columns            `yaml:"columns" mapstructure:"columns"`
	Import  ImportConfig              `yaml:"import" mapstructure:"import"`
	Layouts map[string]schema.Mapping `yaml:"layouts,omitempty" mapstructure:"layouts"`
	Dedup   DedupConfig               `yaml:"dedup" mapstructure:"dedup"`
	Report  ReportConfig              `yaml:"report" mapstructure:"report"`
	Git     GitConfig                 `yaml:"git" mapstructure:"git"`
	Log     LogConfig                 `yaml:"log" mapstructure:"log"`
}

// LedgerConfig locates the ledger file, relative to the workspace.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ImportConfig controls how uploads are read.
type ImportConfig struct {
	Delimiter   string   `yaml:"delimiter" mapstructure:"delimiter"` // ",", ";", "\t" or "auto"
	DateFormats []string `yaml:"date_formats" mapstructure:"date_formats"`
	InboxDir    string   `yaml:"inbox_dir" mapstructure:"inbox_dir"`
}

// DedupConfig controls near-duplicate hints after a merge.
type DedupConfig struct {
	NearMatchDistance int `yaml:"near_match_distance" mapstructure:"near_match_distance"` // 0 disables
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Currency string `yaml:"currency" mapstructure:"currency"`
}

// GitConfig controls committing the ledger after a save.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" mapstructure:"auto_commit"`
	AuthorName  string `yaml:"author_name" mapstructure:"author_name"`
	AuthorEmail string `yaml:"author_email" mapstructure:"author_email"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Ledger:  LedgerConfig{Path: "master.csv"},
		Columns: schema.DefaultColumns(),
		Import: ImportConfig{
			Delimiter:   "auto",
			DateFormats: append([]string(nil), coerce.DefaultDateLayouts...),
			InboxDir:    "inbox",
		},
		Dedup:  DedupConfig{NearMatchDistance: 2},
		Report: ReportConfig{Currency: "CHF"},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "finboard",
			AuthorEmail: "finboard@localhost",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a finboard.yaml file from disk. Unset keys take their default
// values and any key can be overridden from the environment
// (FINBOARD_LEDGER_PATH, FINBOARD_GIT_AUTO_COMMIT, ...).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault is Load, falling back to the defaults (with environment
// overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		var c Config
		if err := newViper().Unmarshal(&c); err != nil {
			return nil, fmt.Errorf("decoding config: %w", err)
		}
		return &c, nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveLayout stores m as the named layout in the config file at path. The
// file is read as written, without defaults merged from the environment, so
// FINBOARD_* overrides never become permanent. A missing file starts from
// Default().
func SaveLayout(path, name string, m schema.Mapping) error {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if cfg.Layouts == nil {
		cfg.Layouts = make(map[string]schema.Mapping)
	}
	cfg.Layouts[strings.ToLower(name)] = m
	return Save(path, cfg)
}

// Delimiter returns the configured upload delimiter, or 0 for "auto".
func (c *Config) Delimiter() rune {
	return ParseDelimiter(c.Import.Delimiter)
}

// ParseDelimiter turns a delimiter setting into a rune. "", "auto" give 0;
// "tab" and `\t` give a tab.
func ParseDelimiter(s string) rune {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0
	case "tab", `\t`, "\t":
		return '\t'
	default:
		return []rune(s)[0]
	}
}

// Layout returns the saved mapping with the given name (case-insensitive).
func (c *Config) Layout(name string) (schema.Mapping, bool) {
	m, ok := c.Layouts[strings.ToLower(name)]
	return m, ok
}

func newViper() *viper.Viper {
	d := Default()
	v := viper.New()

	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("columns.date", d.Columns.Date)
	v.SetDefault("columns.description", d.Columns.Description)
	v.SetDefault("columns.amount", d.Columns.Amount)
	v.SetDefault("columns.category", d.Columns.Category)
	v.SetDefault("import.delimiter", d.Import.Delimiter)
	v.SetDefault("import.date_formats", d.Import.DateFormats)
	v.SetDefault("import.inbox_dir", d.Import.InboxDir)
	v.SetDefault("dedup.near_match_distance", d.Dedup.NearMatchDistance)
	v.SetDefault("report.currency", d.Report.Currency)
	v.SetDefault("git.auto_commit", d.Git.AutoCommit)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
