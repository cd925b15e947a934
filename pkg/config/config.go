// Package config loads settings for the package loader: load policy,
// redirect tables, package storage, the dependency catalog and logging.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/package-linker/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. PKGLINKER_LOADER_EDITOR.
const EnvPrefix = "PKGLINKER"

// Config holds all configuration for the application.
type Config struct {
	Loader    LoaderConfig    `mapstructure:"loader"`
	Redirects RedirectsConfig `mapstructure:"redirects"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

// LoaderConfig controls how package sessions run.
type LoaderConfig struct {
	// TimeLimitMs is the per-tick budget; 0 runs every session to completion.
	TimeLimitMs int `mapstructure:"time_limit_ms"`
	// TimeCheckGranularity is how many budget checks happen between clock reads.
	TimeCheckGranularity int  `mapstructure:"time_check_granularity"`
	Editor               bool `mapstructure:"editor"`
	Interactive          bool `mapstructure:"interactive"`
	// Commandlet marks batch tool runs; they read depends maps like the editor.
	Commandlet          bool `mapstructure:"commandlet"`
	Game                bool `mapstructure:"game"`
	VerifyTrailingTag   bool `mapstructure:"verify_trailing_tag"`
	CrashOnFail         bool `mapstructure:"crash_on_fail"`
	FindExportsInMemory bool `mapstructure:"find_exports_in_memory"`
	Async               bool `mapstructure:"async"`
	Client              bool `mapstructure:"client"`
	Server              bool `mapstructure:"server"`
	// CustomVersions lists the custom version keys this build understands.
	CustomVersions []CustomVersionConfig `mapstructure:"custom_versions"`
	// NativeClasses are registered as compiled-in before any package loads.
	NativeClasses []NativeClassConfig `mapstructure:"native_classes"`
}

// TimeLimit returns the tick budget as a duration.
func (c LoaderConfig) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitMs) * time.Millisecond
}

// CustomVersionConfig registers one custom version key (32 hex digits).
type CustomVersionConfig struct {
	Key     string `mapstructure:"key"`
	Name    string `mapstructure:"name"`
	Version int    `mapstructure:"version"`
}

// NativeClassConfig declares one compiled-in class by path, e.g.
// "/Script/Engine.Actor". Super must be declared earlier in the list.
type NativeClassConfig struct {
	Path       string `mapstructure:"path"`
	Super      string `mapstructure:"super"`
	Deprecated bool   `mapstructure:"deprecated"`
}

// RedirectsConfig holds the active redirect tables.
type RedirectsConfig struct {
	Classes   []ClassRedirectConfig `mapstructure:"classes"`
	GameNames []NameRedirectConfig  `mapstructure:"game_names"`
	Structs   []NameRedirectConfig  `mapstructure:"structs"`
	Plugins   []NameRedirectConfig  `mapstructure:"plugins"`
}

// ClassRedirectConfig is one class rename rule. Depending on which fields
// are set it acts as a class redirect, an instance-only redirect, an
// object-only redirect (ObjectName set) or a subobject rename.
type ClassRedirectConfig struct {
	OldClassName  string `mapstructure:"old_class_name"`
	NewClassName  string `mapstructure:"new_class_name"`
	ObjectName    string `mapstructure:"object_name"`
	InstanceOnly  bool   `mapstructure:"instance_only"`
	OldSubobjName string `mapstructure:"old_subobj_name"`
	NewSubobjName string `mapstructure:"new_subobj_name"`
}

// NameRedirectConfig maps an old name to a new name.
type NameRedirectConfig struct {
	OldName string `mapstructure:"old_name"`
	NewName string `mapstructure:"new_name"`
}

// StorageConfig holds package storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// DatabaseConfig holds the dependency catalog connection.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path. A missing file
// falls back to defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pkglinker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/pkglinker")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return decode(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return decode(v)
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loader.time_limit_ms", 0)
	v.SetDefault("loader.time_check_granularity", 100)
	v.SetDefault("loader.editor", false)
	v.SetDefault("loader.interactive", false)
	v.SetDefault("loader.commandlet", false)
	v.SetDefault("loader.game", true)
	v.SetDefault("loader.verify_trailing_tag", true)
	v.SetDefault("loader.crash_on_fail", false)
	v.SetDefault("loader.find_exports_in_memory", false)
	v.SetDefault("loader.async", false)
	v.SetDefault("loader.client", true)
	v.SetDefault("loader.server", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./content")
	v.SetDefault("storage.scheme", "https")
	v.SetDefault("storage.domain", "myqcloud.com")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./pkglinker.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Loader.TimeLimitMs < 0 {
		return apperrors.New(apperrors.CodeConfigError, "loader.time_limit_ms must not be negative")
	}
	if c.Loader.TimeCheckGranularity < 1 {
		return apperrors.New(apperrors.CodeConfigError, "loader.time_check_granularity must be at least 1")
	}
	for i, cv := range c.Loader.CustomVersions {
		if len(cv.Key) != 32 {
			return apperrors.Newf(apperrors.CodeConfigError, "loader.custom_versions[%d]: key must be 32 hex digits", i)
		}
	}

	declared := make(map[string]bool, len(c.Loader.NativeClasses))
	for i, nc := range c.Loader.NativeClasses {
		if !strings.Contains(nc.Path, ".") {
			return apperrors.Newf(apperrors.CodeConfigError, "loader.native_classes[%d]: path must be Package.Class", i)
		}
		if nc.Super != "" && !declared[strings.ToLower(nc.Super)] {
			return apperrors.Newf(apperrors.CodeConfigError, "loader.native_classes[%d]: super %s is not declared before it", i, nc.Super)
		}
		declared[strings.ToLower(nc.Path)] = true
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported database type: %s", c.Database.Type)
	}

	for i, r := range c.Redirects.Classes {
		if r.OldClassName == "" && r.OldSubobjName == "" {
			return apperrors.Newf(apperrors.CodeConfigError, "redirects.classes[%d]: old_class_name or old_subobj_name is required", i)
		}
	}
	for i, r := range c.Redirects.Plugins {
		if r.OldName == "" || r.NewName == "" {
			return apperrors.Newf(apperrors.CodeConfigError, "redirects.plugins[%d]: old_name and new_name are required", i)
		}
	}

	return nil
}
