// Package config loads corectx's layered configuration: built-in defaults,
// then <repo>/.corectx/config.json, then CORECTX_* environment variables,
// then CLI flags — in that precedence order, via viper.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	tomlv2 "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"corectx/internal/paths"
)

// Config is corectx's complete configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Budget  BudgetConfig  `json:"budget" mapstructure:"budget"`
	Backup  BackupConfig  `json:"backup" mapstructure:"backup"`
	Edit    EditConfig    `json:"edit" mapstructure:"edit"`
	Index   IndexConfig   `json:"index" mapstructure:"index"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// BudgetConfig holds the response budget tier presets and bucket caps used
// by the context engine's fitter (spec.md §4.3.8).
type BudgetConfig struct {
	Tier            string         `json:"tier" mapstructure:"tier"`
	TierTokens      map[string]int `json:"tierTokens" mapstructure:"tierTokens"`
	BucketCaps      BucketCaps     `json:"bucketCaps" mapstructure:"bucketCaps"`
	NoveltyMin      float64        `json:"noveltyMin" mapstructure:"noveltyMin"`
	OverflowPercent float64        `json:"overflowPercent" mapstructure:"overflowPercent"`
}

// BucketCaps caps each span-tag bucket's share of a budget, per
// spec.md §4.3.8 / §8's bucket-cap scenario.
type BucketCaps struct {
	Code       int `json:"code" mapstructure:"code"`
	Interfaces int `json:"interfaces" mapstructure:"interfaces"`
	Tests      int `json:"tests" mapstructure:"tests"`
}

// BackupConfig controls the backup/session store (spec.md §4.1).
type BackupConfig struct {
	Root          string `json:"root" mapstructure:"root"`
	CompactAfter  string `json:"compactAfter" mapstructure:"compactAfter"`
	KeepLatest    int    `json:"keepLatest" mapstructure:"keepLatest"`
	LockTimeoutMs int    `json:"lockTimeoutMs" mapstructure:"lockTimeoutMs"`
}

// EditConfig controls the edit engine (spec.md §4.2).
type EditConfig struct {
	ContextLines     int    `json:"contextLines" mapstructure:"contextLines"`
	MergeHelperPath  string `json:"mergeHelperPath" mapstructure:"mergeHelperPath"`
	MergeTimeoutMs   int    `json:"mergeTimeoutMs" mapstructure:"mergeTimeoutMs"`
	DefaultEngine    string `json:"defaultEngine" mapstructure:"defaultEngine"`
	SmartMergeMinCnf float64 `json:"smartMergeMinConfidence" mapstructure:"smartMergeMinConfidence"`
}

// IndexConfig controls the symbol index loader (spec.md §4.3.2).
type IndexConfig struct {
	Path           string `json:"path" mapstructure:"path"`
	StalenessCheck bool   `json:"stalenessCheck" mapstructure:"stalenessCheck"`
	LockTimeoutMs  int    `json:"lockTimeoutMs" mapstructure:"lockTimeoutMs"`
	PollIntervalMs int    `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	WatchEnabled   bool   `json:"watchEnabled" mapstructure:"watchEnabled"`
}

// LoggingConfig controls internal/logx.
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns corectx's built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Budget: BudgetConfig{
			Tier: "B",
			TierTokens: map[string]int{
				"A": 2000,
				"B": 6000,
				"C": 16000,
			},
			BucketCaps:      BucketCaps{Code: 0, Interfaces: 0, Tests: 0},
			NoveltyMin:      0,
			OverflowPercent: 0.05,
		},
		Backup: BackupConfig{
			Root:          paths.BackupDirName,
			CompactAfter:  "168h",
			KeepLatest:    20,
			LockTimeoutMs: 10000,
		},
		Edit: EditConfig{
			ContextLines:     3,
			MergeHelperPath:  "git",
			MergeTimeoutMs:   5000,
			DefaultEngine:    "hybrid",
			SmartMergeMinCnf: 0.95,
		},
		Index: IndexConfig{
			Path:           "",
			StalenessCheck: true,
			LockTimeoutMs:  10000,
			PollIntervalMs: 200,
			WatchEnabled:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// Load resolves configuration with the precedence: defaults →
// <repoRoot>/.corectx/config.json → CORECTX_* env vars → (caller-bound
// CLI flags, applied by the caller via v.Set before calling Load).
func Load(repoRoot string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	def := DefaultConfig()
	defMap := map[string]interface{}{}
	raw, _ := json.Marshal(def)
	_ = json.Unmarshal(raw, &defMap)
	for k, val := range defMap {
		v.SetDefault(k, val)
	}

	v.SetConfigFile(paths.ConfigPath(repoRoot))
	v.SetConfigType("json")
	v.SetEnvPrefix("CORECTX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = paths.SymbolIndexPath(repoRoot)
	}
	return &cfg, nil
}

// Save writes the configuration to <repoRoot>/.corectx/config.json.
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureDataDir(repoRoot); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.ConfigPath(repoRoot), data, 0644)
}

// Format is an export codec name for Export.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Export serializes the configuration in the requested format, exercising
// each of the codecs viper already depends on (go-toml/v2 for encoding,
// BurntSushi/toml kept for decode-compatibility checks, yaml.v3 for YAML).
func (c *Config) Export(format Format) ([]byte, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatJSON, "":
		return json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatTOML:
		return tomlv2.Marshal(c)
	default:
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
}

// ParseTOML decodes TOML bytes into a Config using BurntSushi/toml, used by
// `corectx config import` to validate hand-edited TOML before Save.
func ParseTOML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnsupportedFormatError is returned by Export for an unknown format name.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported config export format: " + e.Format
}

// RepoConfigDir returns the directory Load/Save read and write.
func RepoConfigDir(repoRoot string) string {
	return filepath.Dir(paths.ConfigPath(repoRoot))
}
