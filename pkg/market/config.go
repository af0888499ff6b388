package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pfolio-api/pkg/confkit"
)

// Config describes the market data providers available to the engines.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures a single market data provider.
type ProviderConfig struct {
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`

	// Seed makes the synthetic provider deterministic per deployment.
	Seed int64 `yaml:"seed"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`
}

// LoadConfig reads provider configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.Type = strings.TrimSpace(os.ExpandEnv(provider.Type))
		provider.BaseURL = strings.TrimSpace(os.ExpandEnv(provider.BaseURL))
		provider.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(provider.TimeoutRaw))
		if provider.TimeoutRaw != "" {
			d, err := time.ParseDuration(provider.TimeoutRaw)
			if err != nil {
				return fmt.Errorf("market provider %s: invalid timeout %q: %w", name, provider.TimeoutRaw, err)
			}
			if d <= 0 {
				return fmt.Errorf("market provider %s: timeout must be positive, got %s", name, d)
			}
			provider.Timeout = d
		}
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("market config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("market config: default provider %q not defined", c.Default)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("market config: provider name cannot be empty")
		}
		if strings.TrimSpace(provider.Type) == "" {
			return fmt.Errorf("market config: provider %s must specify type", name)
		}
		if _, ok := lookupProviderBuilder(provider.Type); !ok {
			return fmt.Errorf("market config: provider %s has unsupported type %q", name, provider.Type)
		}
	}
	return nil
}

// BuildProviders instantiates providers according to configuration, each
// wrapped with timeout and retry handling.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: unsupported type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		opts := []ResilientOption{WithMaxRetries(providerCfg.MaxRetries)}
		if providerCfg.Timeout > 0 {
			opts = append(opts, WithTimeout(providerCfg.Timeout))
		}
		result[name] = NewResilientProvider(name, provider, opts...)
	}
	return result, nil
}

// DefaultProvider returns the configured default from a built provider map.
func (c *Config) DefaultProvider(providers map[string]Provider) (Provider, error) {
	name := c.Default
	if name == "" && len(providers) == 1 {
		for n := range providers {
			name = n
		}
	}
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("market config: default provider %q not built", name)
	}
	return p, nil
}
