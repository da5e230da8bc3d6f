// Package config loads engview settings from a YAML file and ENGVIEW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ENGVIEW"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Files    FilesConfig    `mapstructure:"files" yaml:"files"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Queue    QueueConfig    `mapstructure:"queue" yaml:"queue"`
	Watcher  WatcherConfig  `mapstructure:"watcher" yaml:"watcher"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// File is the config file actually read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr is host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type FilesConfig struct {
	Path          string   `mapstructure:"path" yaml:"path"`
	Extensions    []string `mapstructure:"extensions" yaml:"extensions"`
	MaxSize       int64    `mapstructure:"max_size" yaml:"max_size"`
	ScanOnStartup bool     `mapstructure:"scan_on_startup" yaml:"scan_on_startup"`
	Parallelism   int      `mapstructure:"parallelism" yaml:"parallelism"`
}

type MetadataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type WatcherConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	StabilityThreshold time.Duration `mapstructure:"stability_threshold" yaml:"stability_threshold"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("files.path", "./test-data")
	v.SetDefault("files.extensions", []string{".det", ".pou", ".prt"})
	v.SetDefault("files.max_size", 10*1024*1024)
	v.SetDefault("files.scan_on_startup", true)
	v.SetDefault("files.parallelism", 4)
	v.SetDefault("metadata.dir", ".metadata")
	v.SetDefault("queue.concurrency", 3)
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.stability_threshold", "500ms")
	v.SetDefault("watcher.poll_interval", "100ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)
}

// Default returns the built-in settings with no file or environment applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads path, or ./config.yaml when path is empty and that file
// exists, then applies ENGVIEW_* overrides (e.g. ENGVIEW_SERVER_PORT) and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if strings.TrimSpace(c.Files.Path) == "" {
		errs = append(errs, errors.New("files.path is required"))
	}
	if len(c.Files.Extensions) == 0 {
		errs = append(errs, errors.New("files.extensions must list at least one extension"))
	}
	if c.Files.MaxSize < 0 {
		errs = append(errs, errors.New("files.max_size cannot be negative"))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency))
	}
	if strings.TrimSpace(c.Metadata.Dir) == "" {
		errs = append(errs, errors.New("metadata.dir is required"))
	}
	if c.Watcher.Enabled && (c.Watcher.StabilityThreshold <= 0 || c.Watcher.PollInterval <= 0) {
		errs = append(errs, errors.New("watcher durations must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// WriteYAML writes the settings in the layout Load reads back.
func (c *Config) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
