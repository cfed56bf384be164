package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no --config flag is given. Its absence is
// not an error.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes every environment override, e.g.
// JVMMIXER_OBFUSCATION_CRASHER_ENABLED=true.
const EnvPrefix = "JVMMIXER"

// Archive compression methods
const (
	CompressionDeflate = "deflate"
	CompressionStore   = "store"
)

// --- Nested Configuration Structs ---

// ScramblingConfig defines settings for generated names
type ScramblingConfig struct {
	Mode   string `yaml:"mode" mapstructure:"mode"`
	Length int    `yaml:"length" mapstructure:"length"`
}

// IndirectionConfig defines settings for call-site indirection
type IndirectionConfig struct {
	Enabled    bool     `yaml:"enabled" mapstructure:"enabled"`
	Exclusions []string `yaml:"exclusions" mapstructure:"exclusions"`
}

// ShuffleConfig defines settings for member reordering at write time
type ShuffleConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// CrasherConfig defines settings for the anti-tooling archive layout
type CrasherConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ObfuscationConfig holds all obfuscation-specific settings
type ObfuscationConfig struct {
	Scrambling  ScramblingConfig  `yaml:"scrambling" mapstructure:"scrambling"`
	Indirection IndirectionConfig `yaml:"indirection" mapstructure:"indirection"`
	Shuffle     ShuffleConfig     `yaml:"shuffle" mapstructure:"shuffle"`
	Crasher     CrasherConfig     `yaml:"crasher" mapstructure:"crasher"`
}

// ArchiveConfig defines how the output archive is written
type ArchiveConfig struct {
	Compression   string `yaml:"compression" mapstructure:"compression"`
	CommentFiller int    `yaml:"comment_filler" mapstructure:"comment_filler"`
}

// Config holds all configuration settings for the obfuscator.
type Config struct {
	Silent    bool `yaml:"silent" mapstructure:"silent"`         // Suppress informational messages
	DebugMode bool `yaml:"debug_mode" mapstructure:"debug_mode"` // Enable verbose debug logging

	// Seed fixes the run's random source; 0 derives one from the clock.
	// SeedPhrase, when set, is hashed into the seed instead.
	Seed       int64  `yaml:"seed" mapstructure:"seed"`
	SeedPhrase string `yaml:"seed_phrase" mapstructure:"seed_phrase"`

	// Entry path prefixes copied verbatim, never parsed for rewriting
	HardExclusions []string `yaml:"hard_exclusions" mapstructure:"hard_exclusions"`
	// Class/member prefixes every transform leaves alone
	Exclusions []string `yaml:"exclusions" mapstructure:"exclusions"`
	// Archives that only provide types for resolution
	Libraries []string `yaml:"libraries" mapstructure:"libraries"`

	Obfuscation ObfuscationConfig `yaml:"obfuscation" mapstructure:"obfuscation"`
	Archive     ArchiveConfig     `yaml:"archive" mapstructure:"archive"`
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		HardExclusions: []string{},
		Exclusions:     []string{},
		Libraries:      []string{},
		Obfuscation: ObfuscationConfig{
			Scrambling: ScramblingConfig{
				Mode:   "identifier",
				Length: 8,
			},
			Indirection: IndirectionConfig{
				Enabled:    true,
				Exclusions: []string{},
			},
			Shuffle: ShuffleConfig{Enabled: true},
			Crasher: CrasherConfig{Enabled: false},
		},
		Archive: ArchiveConfig{
			Compression:   CompressionDeflate,
			CommentFiller: 32000,
		},
	}
}

// LoadConfig reads configuration from file and environment variables, then
// returns a filled Config struct. A missing default file yields the defaults;
// a missing explicitly named file is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = DefaultConfigFile
	}

	if _, err := os.Stat(configPath); err == nil {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("error unmarshalling config file %s: %w", configPath, err)
		}
		log.WithField("path", configPath).Debug("loaded configuration")
	} else if os.IsNotExist(err) {
		if configPath != DefaultConfigFile {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		log.Debugf("configuration file '%s' not found, using default settings", DefaultConfigFile)
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have a closed set of choices or a range.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Archive.Compression) {
	case CompressionDeflate, CompressionStore:
		c.Archive.Compression = strings.ToLower(c.Archive.Compression)
	default:
		return fmt.Errorf("invalid archive.compression %q: want %s or %s", c.Archive.Compression, CompressionDeflate, CompressionStore)
	}
	if c.Archive.CommentFiller < 0 || c.Archive.CommentFiller > 0xffff {
		return fmt.Errorf("invalid archive.comment_filler %d: must be between 0 and 65535", c.Archive.CommentFiller)
	}
	return nil
}

// SaveConfig saves the default configuration to a file.
func SaveConfig(configPath string) error {
	cfg := DefaultConfig()
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	log.WithField("path", configPath).Info("saved default configuration")
	return nil
}

// Helper to explicitly bind environment variables, handling potential key mismatches
func bindEnv(v *viper.Viper, key string) {
	envKey := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	_ = v.BindEnv(key, EnvPrefix+"_"+envKey)
}

// envOverrides maps each overridable key onto the field it sets.
var envOverrides = map[string]func(v *viper.Viper, key string, c *Config){
	"silent":                             func(v *viper.Viper, k string, c *Config) { c.Silent = v.GetBool(k) },
	"debug_mode":                         func(v *viper.Viper, k string, c *Config) { c.DebugMode = v.GetBool(k) },
	"seed":                               func(v *viper.Viper, k string, c *Config) { c.Seed = v.GetInt64(k) },
	"seed_phrase":                        func(v *viper.Viper, k string, c *Config) { c.SeedPhrase = v.GetString(k) },
	"hard_exclusions":                    func(v *viper.Viper, k string, c *Config) { c.HardExclusions = splitList(v.GetString(k)) },
	"exclusions":                         func(v *viper.Viper, k string, c *Config) { c.Exclusions = splitList(v.GetString(k)) },
	"libraries":                          func(v *viper.Viper, k string, c *Config) { c.Libraries = splitList(v.GetString(k)) },
	"obfuscation.scrambling.mode":        func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Scrambling.Mode = v.GetString(k) },
	"obfuscation.scrambling.length":      func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Scrambling.Length = v.GetInt(k) },
	"obfuscation.indirection.enabled":    func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Indirection.Enabled = v.GetBool(k) },
	"obfuscation.indirection.exclusions": func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Indirection.Exclusions = splitList(v.GetString(k)) },
	"obfuscation.shuffle.enabled":        func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Shuffle.Enabled = v.GetBool(k) },
	"obfuscation.crasher.enabled":        func(v *viper.Viper, k string, c *Config) { c.Obfuscation.Crasher.Enabled = v.GetBool(k) },
	"archive.compression":                func(v *viper.Viper, k string, c *Config) { c.Archive.Compression = v.GetString(k) },
	"archive.comment_filler":             func(v *viper.Viper, k string, c *Config) { c.Archive.CommentFiller = v.GetInt(k) },
}

// applyEnv overlays JVMMIXER_* environment variables onto c.
func applyEnv(c *Config) {
	v := viper.New()
	for key := range envOverrides {
		bindEnv(v, key)
	}
	for key, set := range envOverrides {
		if v.IsSet(key) {
			set(v, key, c)
			log.WithField("key", key).Debug("configuration overridden from environment")
		}
	}
}

// splitList parses comma separated list overrides.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
