package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/compiler"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cypherq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, compiler.WithParams, cfg.Strategy())
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
compile:
  strategy: no-params
  separator: "__"
schema:
  paths: [schema/movies.cue]
catalog:
  enabled: true
neo4j:
  timeout: 5s
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, compiler.NoParams, cfg.Strategy())
	assert.Equal(t, "__", cfg.Compile.Separator)
	assert.Equal(t, "p", cfg.Compile.ParamPrefix, "unset fields keep their default")
	assert.Equal(t, []string{"schema/movies.cue"}, cfg.Schema.Paths)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, "cypherq.db", cfg.Catalog.Path)
	assert.Equal(t, 5*time.Second, cfg.Neo4j.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoad_EmptyPathAndEmptyFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Compile, cfg.Compile)

	cfg, err = Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Compile, cfg.Compile)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "compile:\n  stratgey: no-params\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stratgey")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidReportsEveryField(t *testing.T) {
	_, err := Load(writeFile(t, `
compile:
  strategy: sometimes
  relationship_style: camel
log:
  format: xml
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile.strategy")
	assert.Contains(t, err.Error(), "compile.relationship_style")
	assert.Contains(t, err.Error(), "log.format")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CYPHERQ_STRATEGY":           "with-params-for-values",
		"CYPHERQ_SCHEMA_PATHS":       "a.cue, b/ ,",
		"CYPHERQ_CATALOG_ENABLED":    "true",
		"CYPHERQ_NEO4J_TIMEOUT":      "2s",
		"CYPHERQ_RELATIONSHIP_STYLE": "upper-snake",
	}
	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, compiler.WithParamsForValues, cfg.Strategy())
	assert.Equal(t, []string{"a.cue", "b/"}, cfg.Schema.Paths)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Neo4j.Timeout)
	assert.Equal(t, "upper-snake", cfg.Compile.RelationshipStyle)
	assert.Empty(t, cfg.Validate())
}

func TestApplyEnv_Malformed(t *testing.T) {
	tests := map[string]string{
		"CYPHERQ_CATALOG_ENABLED": "maybe",
		"CYPHERQ_NEO4J_TIMEOUT":   "soon",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			err := Defaults().ApplyEnv(func(k string) string {
				if k == key {
					return val
				}
				return ""
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CYPHERQ_LOG_LEVEL", "warn")
	cfg, err := Load(writeFile(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.Log.SlogLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"empty separator", func(c *Config) { c.Compile.Separator = "" }, "compile.separator"},
		{"prefix with dollar", func(c *Config) { c.Compile.ParamPrefix = "$p" }, "compile.param_prefix"},
		{"unknown style", func(c *Config) { c.Compile.RelationshipStyle = "kebab" }, "compile.relationship_style"},
		{"catalog without path", func(c *Config) { c.Catalog.Enabled = true; c.Catalog.Path = "" }, "catalog.path"},
		{"negative timeout", func(c *Config) { c.Neo4j.Timeout = -time.Second }, "neo4j.timeout"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.edit(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Contains(t, errs[0].Error(), tt.field)
		})
	}
}

func TestLogHandler(t *testing.T) {
	assert.IsType(t, &slog.JSONHandler{}, LogConfig{Level: "info", Format: "JSON"}.Handler(os.Stderr))
	assert.IsType(t, &slog.TextHandler{}, LogConfig{Level: "info", Format: "text"}.Handler(os.Stderr))
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "loud"}.SlogLevel())
}
