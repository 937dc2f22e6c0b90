// Package config resolves daemon settings: built-in defaults, then an
// optional YAML file, then ORBD_* environment variables. Command-line flags
// are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	DBDir       string
	ListenAddr  string
	// MetricsAddr is where /metrics is served; empty disables it.
	MetricsAddr string
	Bootstrap   Bootstrap
	Debug       bool
	// Passphrase seals the database file when set.
	Passphrase   string
	LittleEndian bool
	// InMemory keeps the registry in memory only.
	InMemory bool
	// AcceptRate limits new RPC connections per second; zero disables it.
	AcceptRate  float64
	AcceptBurst int
}

type Bootstrap struct {
	Host string
	Port int32
}

func Default() Config {
	return Config{
		DBDir:       "orb.db",
		ListenAddr:  "localhost:1050",
		MetricsAddr: "localhost:9150",
		Bootstrap:   Bootstrap{Host: "localhost", Port: 1049},
		AcceptRate:  100,
		AcceptBurst: 20,
	}
}

type fileConfig struct {
	Database struct {
		Dir          string `yaml:"dir"`
		Passphrase   string `yaml:"passphrase"`
		LittleEndian *bool  `yaml:"littleEndian"`
		InMemory     *bool  `yaml:"inMemory"`
	} `yaml:"database"`
	Server struct {
		Listen      string   `yaml:"listen"`
		Metrics     *string  `yaml:"metrics"`
		AcceptRate  *float64 `yaml:"acceptRate"`
		AcceptBurst int      `yaml:"acceptBurst"`
	} `yaml:"server"`
	Bootstrap struct {
		Host string `yaml:"host"`
		Port int32  `yaml:"port"`
	} `yaml:"bootstrap"`
	Debug *bool `yaml:"debug"`
}

// Load reads path over the defaults and then applies the environment. A
// missing file is only an error when the caller named it explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		merge(&cfg, &parsed)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(dst *Config, src *fileConfig) {
	if src.Database.Dir != "" {
		dst.DBDir = src.Database.Dir
	}
	if src.Database.Passphrase != "" {
		dst.Passphrase = src.Database.Passphrase
	}
	if src.Database.LittleEndian != nil {
		dst.LittleEndian = *src.Database.LittleEndian
	}
	if src.Database.InMemory != nil {
		dst.InMemory = *src.Database.InMemory
	}
	if src.Server.Listen != "" {
		dst.ListenAddr = src.Server.Listen
	}
	if src.Server.Metrics != nil {
		dst.MetricsAddr = strings.TrimSpace(*src.Server.Metrics)
	}
	if src.Server.AcceptRate != nil {
		dst.AcceptRate = *src.Server.AcceptRate
	}
	if src.Server.AcceptBurst != 0 {
		dst.AcceptBurst = src.Server.AcceptBurst
	}
	if src.Bootstrap.Host != "" {
		dst.Bootstrap.Host = src.Bootstrap.Host
	}
	if src.Bootstrap.Port != 0 {
		dst.Bootstrap.Port = src.Bootstrap.Port
	}
	if src.Debug != nil {
		dst.Debug = *src.Debug
	}
}

// ApplyEnvOverrides copies every non-empty ORBD_* variable into cfg, and
// ORBD_METRICS_ADDR even when it is empty.
// Numeric and boolean variables that do not parse are errors.
func ApplyEnvOverrides(cfg *Config) error {
	if v := env("ORBD_DB_DIR"); v != "" {
		cfg.DBDir = v
	}
	if v := env("ORBD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	// An explicitly empty ORBD_METRICS_ADDR turns the endpoint off.
	if v, ok := os.LookupEnv("ORBD_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v := env("ORBD_BOOTSTRAP_HOST"); v != "" {
		cfg.Bootstrap.Host = v
	}
	if v := env("ORBD_DB_PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if v := env("ORBD_BOOTSTRAP_PORT"); v != "" {
		port, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("ORBD_BOOTSTRAP_PORT: %w", err)
		}
		cfg.Bootstrap.Port = int32(port)
	}
	if v := env("ORBD_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ORBD_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
