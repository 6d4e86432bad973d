package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "orchat"

// Config is the user configuration for orchat.
type Config struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	AppURL          string        `mapstructure:"app_url" yaml:"app_url"`
	AppTitle        string        `mapstructure:"app_title" yaml:"app_title"`
	Model           string        `mapstructure:"model" yaml:"model,omitempty"`
	MaxModels       int           `mapstructure:"max_models" yaml:"max_models"`
	CredentialStore string        `mapstructure:"credential_store" yaml:"credential_store,omitempty"`
	CatalogTimeout  time.Duration `mapstructure:"catalog_timeout" yaml:"catalog_timeout"`

	// APIKey may be a literal or an op://, $(...) or $VAR reference.
	// It is never written back by Save.
	APIKey string `mapstructure:"api_key" yaml:"-"`

	// ResolvedAPIKey is APIKey after ResolveAPIKey, or OPENROUTER_API_KEY.
	ResolvedAPIKey string `mapstructure:"-" yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:        "https://openrouter.ai/api/v1",
		AppURL:         "http://localhost:5174",
		AppTitle:       "AI Chat Demo",
		MaxModels:      20,
		CatalogTimeout: 10 * time.Second,
	}
}

// Load reads config.yaml from the user config directory (or the current
// directory) and applies defaults. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := configRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(configDir, appName))
		v.AddConfigPath(".")
	}

	d := Defaults()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("app_url", d.AppURL)
	v.SetDefault("app_title", d.AppTitle)
	v.SetDefault("model", "")
	v.SetDefault("max_models", d.MaxModels)
	v.SetDefault("credential_store", "")
	v.SetDefault("catalog_timeout", d.CatalogTimeout)
	v.SetDefault("api_key", "")

	v.SetEnvPrefix("ORCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	baseURL, err := ResolveBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base_url: %w", err)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	} else {
		cfg.BaseURL = d.BaseURL
	}

	cfg.ResolvedAPIKey, err = ResolveAPIKey(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("api_key: %w", err)
	}
	if cfg.ResolvedAPIKey == "" {
		cfg.ResolvedAPIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	if cfg.MaxModels <= 0 {
		cfg.MaxModels = d.MaxModels
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = d.CatalogTimeout
	}

	return &cfg, nil
}

func configRoot() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir, nil
	}
	return os.UserConfigDir()
}

// GetConfigPath returns the path where the config file should be located.
func GetConfigPath() (string, error) {
	configDir, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, "config.yaml"), nil
}

// Exists returns true if a config file exists.
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Marshal renders cfg as YAML. The API key is never included.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# orchat configuration\n# api_key may be set here as op://..., $(command) or ${VAR}; prefer `orchat key set`.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}

// SetValue sets a top-level key in the config file at path (or the default
// location) and leaves every other entry, including comments and api_key,
// as it was. The file is created if missing.
func SetValue(path, key, value string) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config %s is not a mapping", path)
	}

	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			node.HeadComment = root.Content[i+1].HeadComment
			node.LineComment = root.Content[i+1].LineComment
			root.Content[i+1] = node
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, node)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}
