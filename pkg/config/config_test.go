package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/package-linker/pkg/errors"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "pkglinker.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Loader.TimeLimitMs)
	assert.Equal(t, 100, cfg.Loader.TimeCheckGranularity)
	assert.True(t, cfg.Loader.VerifyTrailingTag)
	assert.True(t, cfg.Loader.Game)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_Redirects(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "pkglinker.yaml")
	content := `
loader:
  time_limit_ms: 5
  editor: true
  custom_versions:
    - key: "0123456789abcdef0123456789abcdef"
      name: Framework
      version: 4
redirects:
  classes:
    - old_class_name: OldWidget
      new_class_name: /Script/Engine.Widget
    - old_class_name: LegacyMesh
      new_class_name: StaticMesh
      instance_only: true
    - old_class_name: Character
      old_subobj_name: CharMesh0
      new_subobj_name: CharacterMesh0
  game_names:
    - old_name: /Script/OldGame
      new_name: /Script/NewGame
  plugins:
    - old_name: OldPlugin
      new_name: NewPlugin
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Loader.TimeLimit())
	assert.True(t, cfg.Loader.Editor)
	require.Len(t, cfg.Loader.CustomVersions, 1)
	assert.Equal(t, 4, cfg.Loader.CustomVersions[0].Version)

	require.Len(t, cfg.Redirects.Classes, 3)
	assert.Equal(t, "/Script/Engine.Widget", cfg.Redirects.Classes[0].NewClassName)
	assert.True(t, cfg.Redirects.Classes[1].InstanceOnly)
	assert.Equal(t, "CharacterMesh0", cfg.Redirects.Classes[2].NewSubobjName)
	require.Len(t, cfg.Redirects.GameNames, 1)
	assert.Equal(t, "/Script/NewGame", cfg.Redirects.GameNames[0].NewName)
	require.Len(t, cfg.Redirects.Plugins, 1)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader("yaml", []byte("database:\n  type: mysql\n  host: db\n  port: 3306\n"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, 3306, cfg.Database.Port)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PKGLINKER_LOADER_EDITOR", "true")

	cfg, err := LoadFromReader("yaml", []byte("log:\n  level: info\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Loader.Editor)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative budget", func(c *Config) { c.Loader.TimeLimitMs = -1 }, true},
		{"zero granularity", func(c *Config) { c.Loader.TimeCheckGranularity = 0 }, true},
		{"bad database", func(c *Config) { c.Database.Type = "oracle" }, true},
		{"short version key", func(c *Config) {
			c.Loader.CustomVersions = []CustomVersionConfig{{Key: "abc"}}
		}, true},
		{"class redirect without source", func(c *Config) {
			c.Redirects.Classes = []ClassRedirectConfig{{NewClassName: "X"}}
		}, true},
		{"plugin without target", func(c *Config) {
			c.Redirects.Plugins = []NameRedirectConfig{{OldName: "A"}}
		}, true},
		{"native classes in order", func(c *Config) {
			c.Loader.NativeClasses = []NativeClassConfig{
				{Path: "/Script/Engine.Actor"},
				{Path: "/Script/Engine.Pawn", Super: "/script/engine.actor"},
			}
		}, false},
		{"native class without package", func(c *Config) {
			c.Loader.NativeClasses = []NativeClassConfig{{Path: "Actor"}}
		}, true},
		{"native super declared later", func(c *Config) {
			c.Loader.NativeClasses = []NativeClassConfig{
				{Path: "/Script/Engine.Pawn", Super: "/Script/Engine.Actor"},
				{Path: "/Script/Engine.Actor"},
			}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
