package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"` // public base for preview URLs
}

type PreviewConfig struct {
	BasePort       int           `mapstructure:"base_port"`
	MaxPort        int           `mapstructure:"max_port"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	TermTimeout    time.Duration `mapstructure:"term_timeout"`
	KillTimeout    time.Duration `mapstructure:"kill_timeout"`
	InstallTimeout time.Duration `mapstructure:"install_timeout"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type DetectConfig struct {
	RulesPath string `mapstructure:"rules_path"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Preview PreviewConfig `mapstructure:"preview"`
	Storage StorageConfig `mapstructure:"storage"`
	Detect  DetectConfig  `mapstructure:"detect"`
}

// Load reads previewd.yaml from the working directory or ~/.previewd.
// A missing config file is fine; defaults cover everything.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("previewd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.previewd")

	v.SetDefault("server.port", 8001)
	v.SetDefault("server.base_url", "http://127.0.0.1:8001")
	v.SetDefault("preview.base_port", 8002)
	v.SetDefault("preview.max_port", 8999)
	v.SetDefault("preview.grace_period", "5s")
	v.SetDefault("preview.term_timeout", "3s")
	v.SetDefault("preview.kill_timeout", "2s")
	v.SetDefault("preview.install_timeout", "5m")
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".previewd", "history.db"))
	v.SetDefault("detect.rules_path", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
