// Package config loads the msfauditor JSON configuration with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	AllowedModules []string     `mapstructure:"allowed_modules"`
	Timeout        int          `mapstructure:"timeout"`
	MSF            MSFConfig    `mapstructure:"msf"`
	AI             AIConfig     `mapstructure:"ai"`
	Report         ReportConfig `mapstructure:"report"`
}

// MSFConfig describes the Metasploit RPC endpoint.
type MSFConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      bool   `mapstructure:"ssl"`
}

// AIConfig describes the LLM provider used for module selection and result
// analysis.
type AIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// ReportConfig controls where report workspaces are created.
type ReportConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

var providers = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// DefaultModel returns the provider's default model when ai.model is unset.
func (a AIConfig) DefaultModel() string {
	if a.Model != "" {
		return a.Model
	}
	switch a.Provider {
	case "anthropic":
		return "claude-3-5-sonnet-20241022"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "gpt-4o"
	}
}

// ResolveAPIKey returns the configured key or the conventional environment
// variable for the provider.
func (a AIConfig) ResolveAPIKey() string {
	if a.APIKey != "" {
		return a.APIKey
	}
	switch a.Provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// Load reads the JSON config file at path and applies environment
// overrides. A missing file is an error; callers that can run without a
// config file should use Defaults instead.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnvFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config without reading any file, with environment
// overrides still applied. Used by doctor when no config file exists.
func Defaults() *Config {
	v := newViper()
	cfg := &Config{}
	// Unmarshalling an empty viper still applies the registered defaults.
	_ = v.Unmarshal(cfg)
	applyEnvFallbacks(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("allowed_modules", []string{})
	v.SetDefault("timeout", 300)
	v.SetDefault("msf.host", "127.0.0.1")
	v.SetDefault("msf.port", 55553)
	v.SetDefault("msf.username", "msf")
	v.SetDefault("msf.password", "")
	v.SetDefault("msf.ssl", false)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("report.base_dir", "reports")

	// MSFAUDITOR_MSF_HOST, MSFAUDITOR_AI_PROVIDER, ...
	v.SetEnvPrefix("MSFAUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func applyEnvFallbacks(cfg *Config) {
	if cfg.MSF.Password == "" {
		cfg.MSF.Password = os.Getenv("MSF_PASSWORD")
	}
}

// Validate checks the loaded configuration. The allow-list is restricted to
// auxiliary modules; exploit and payload modules only enter a run through
// an AI plan the operator confirms.
func (c *Config) Validate() error {
	for _, module := range c.AllowedModules {
		if !strings.HasPrefix(module, "auxiliary/") {
			return fmt.Errorf("allowed module %q must start with 'auxiliary/'", module)
		}
	}
	if !providers[c.AI.Provider] {
		return fmt.Errorf("unsupported ai provider %q (want openai, anthropic or gemini)", c.AI.Provider)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.MSF.Port <= 0 || c.MSF.Port > 65535 {
		return fmt.Errorf("msf.port out of range: %d", c.MSF.Port)
	}
	return nil
}
