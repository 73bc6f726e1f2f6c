package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cypherq/internal/compiler"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CYPHERQ_"

// Config is the cypherq configuration.
type Config struct {
	Compile CompileConfig `yaml:"compile"`
	Schema  SchemaConfig  `yaml:"schema"`
	Catalog CatalogConfig `yaml:"catalog"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Log     LogConfig     `yaml:"log"`
}

// CompileConfig controls query compilation.
type CompileConfig struct {
	// Strategy is a compiler.Strategy name: no-params, with-params or
	// with-params-for-values.
	Strategy string `yaml:"strategy"`

	// Separator joins flattened wire names.
	Separator string `yaml:"separator"`

	// ParamPrefix prefixes generated parameter names.
	ParamPrefix string `yaml:"param_prefix"`

	// RelationshipStyle styles inferred relationship types: declared or
	// upper-snake.
	RelationshipStyle string `yaml:"relationship_style"`
}

// SchemaConfig lists CUE schema files or directories.
type SchemaConfig struct {
	Paths []string `yaml:"paths"`
}

// CatalogConfig configures the compiled statement catalog.
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Neo4jConfig configures statement execution.
type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig configures the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Compile: CompileConfig{
			Strategy:          compiler.WithParams.String(),
			Separator:         "_",
			ParamPrefix:       "p",
			RelationshipStyle: "declared",
		},
		Catalog: CatalogConfig{Path: "cypherq.db"},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies CYPHERQ_* overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, joinValidation(errs)
	}
	return cfg, nil
}

// decode rejects unknown fields so typos surface instead of being
// ignored.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies overrides read through getenv. Malformed values are
// errors rather than silently ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("STRATEGY", &c.Compile.Strategy)
	str("SEPARATOR", &c.Compile.Separator)
	str("PARAM_PREFIX", &c.Compile.ParamPrefix)
	str("RELATIONSHIP_STYLE", &c.Compile.RelationshipStyle)
	str("CATALOG_PATH", &c.Catalog.Path)
	str("NEO4J_URI", &c.Neo4j.URI)
	str("NEO4J_USERNAME", &c.Neo4j.Username)
	str("NEO4J_PASSWORD", &c.Neo4j.Password)
	str("NEO4J_DATABASE", &c.Neo4j.Database)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v := getenv(EnvPrefix + "SCHEMA_PATHS"); v != "" {
		c.Schema.Paths = splitList(v)
	}
	if v := getenv(EnvPrefix + "CATALOG_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCATALOG_ENABLED: %w", EnvPrefix, err)
		}
		c.Catalog.Enabled = b
	}
	if v := getenv(EnvPrefix + "NEO4J_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sNEO4J_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Neo4j.Timeout = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Strategy returns the parsed build strategy.
func (c *Config) Strategy() compiler.Strategy {
	s, _ := compiler.ParseStrategy(c.Compile.Strategy)
	return s
}

// SlogLevel returns the parsed log level, info when unparseable.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Handler returns a slog handler writing to w in the configured format.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ValidationError is one invalid configuration field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every field and returns all problems found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := compiler.ParseStrategy(c.Compile.Strategy); err != nil {
		add("compile.strategy", "E001", "%v", err)
	}
	if c.Compile.Separator == "" {
		add("compile.separator", "E002", "must not be empty")
	}
	if c.Compile.ParamPrefix == "" || strings.ContainsAny(c.Compile.ParamPrefix, " $.`") {
		add("compile.param_prefix", "E003", "%q is not a parameter name prefix", c.Compile.ParamPrefix)
	}
	switch c.Compile.RelationshipStyle {
	case "declared", "upper-snake":
	default:
		add("compile.relationship_style", "E004", "unknown style %q (want declared or upper-snake)", c.Compile.RelationshipStyle)
	}
	if c.Catalog.Enabled && c.Catalog.Path == "" {
		add("catalog.path", "E005", "required when the catalog is enabled")
	}
	if c.Neo4j.Timeout < 0 {
		add("neo4j.timeout", "E006", "must not be negative")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("log.level", "E007", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "E008", "unknown format %q (want text or json)", c.Log.Format)
	}
	return errs
}

func joinValidation(errs []ValidationError) error {
	list := make([]error, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	return fmt.Errorf("invalid config: %w", errors.Join(list...))
}
