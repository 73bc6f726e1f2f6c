package compiler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/value"
)

// Strategy controls how folded values are rendered.
type Strategy uint8

const (
	// NoParams inlines every value as a literal.
	NoParams Strategy = iota

	// WithParams registers values as query parameters. A property map
	// becomes a single parameter unless one of its values is symbolic.
	WithParams

	// WithParamsForValues renders property maps per property,
	// { K: $p.K }, with the folded values in one parameter.
	WithParamsForValues
)

func (s Strategy) String() string {
	switch s {
	case NoParams:
		return "no-params"
	case WithParams:
		return "with-params"
	case WithParamsForValues:
		return "with-params-for-values"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy parses the String form of a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no-params", "noparams", "none":
		return NoParams, nil
	case "with-params", "withparams", "", "params":
		return WithParams, nil
	case "with-params-for-values", "withparamsforvalues", "values":
		return WithParamsForValues, nil
	}
	return NoParams, fmt.Errorf("unknown build strategy %q", s)
}

// ParameterTable registers out-of-band query parameters.
type ParameterTable interface {
	// CreateParameter stores v and returns the parameter name, without "$".
	CreateParameter(v any) string
}

// Params is the default ParameterTable. Names are prefix + ordinal:
// p0, p1, ...
type Params struct {
	prefix string
	names  []string
	values map[string]any
}

// NewParams creates an empty table using the "p" prefix.
func NewParams() *Params {
	return NewParamsWithPrefix("p")
}

// NewParamsWithPrefix creates an empty table with a custom name prefix.
func NewParamsWithPrefix(prefix string) *Params {
	return &Params{prefix: prefix, values: make(map[string]any)}
}

func (p *Params) CreateParameter(v any) string {
	name := fmt.Sprintf("%s%d", p.prefix, len(p.names))
	p.names = append(p.names, name)
	p.values[name] = v
	return name
}

// Names returns parameter names in creation order.
func (p *Params) Names() []string {
	return append([]string(nil), p.names...)
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Len returns the number of parameters.
func (p *Params) Len() int { return len(p.names) }

// Values returns the table as driver-ready values.
func (p *Params) Values() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = value.Plain(v)
	}
	return out
}

// IDGenerator produces build IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 build IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in its hyphenated form.
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type memoKey struct {
	node     expr.Node
	bare     bool
	strategy Strategy
}

type memoEntry struct {
	text string
	node expr.Node
}

// Context is the state of one query build: the strategy, the parameter
// table and the translation cache.
//
// A Context must be owned by one build at a time. Nothing in it is
// locked; callers sharing one across goroutines synchronize around every
// call.
type Context struct {
	ID       string
	Strategy Strategy
	Params   ParameterTable

	ids  IDGenerator
	memo map[memoKey]memoEntry
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithStrategy sets the build strategy. The default is WithParams.
func WithStrategy(s Strategy) ContextOption {
	return func(c *Context) { c.Strategy = s }
}

// WithParameterTable replaces the default Params table.
func WithParameterTable(t ParameterTable) ContextOption {
	return func(c *Context) { c.Params = t }
}

// WithIDGenerator replaces the UUIDv7 build-ID generator.
func WithIDGenerator(g IDGenerator) ContextOption {
	return func(c *Context) { c.ids = g }
}

// NewContext creates a build context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		Strategy: WithParams,
		ids:      UUIDv7Generator{},
		memo:     make(map[memoKey]memoEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Params == nil {
		c.Params = NewParams()
	}
	c.ID = c.ids.Generate()
	return c
}

// Cached reports how many translations the context holds.
func (c *Context) Cached() int { return len(c.memo) }

func (c *Context) lookup(k memoKey) (memoEntry, bool) {
	e, ok := c.memo[k]
	return e, ok
}

func (c *Context) remember(k memoKey, e memoEntry) {
	c.memo[k] = e
}

// Statement is compiled query text with its parameters.
type Statement struct {
	BuildID string         `json:"build_id"`
	Text    string         `json:"text"`
	Params  map[string]any `json:"params"`
}

// Statement pairs text with the context's parameter values. Tables that
// do not expose their values yield an empty parameter map.
func (c *Context) Statement(text string) Statement {
	params := map[string]any{}
	if t, ok := c.Params.(interface{ Values() map[string]any }); ok {
		params = t.Values()
	}
	return Statement{BuildID: c.ID, Text: text, Params: params}
}

// Fingerprint is the content hash of the statement's text and parameters.
// It ignores the build ID.
func (s Statement) Fingerprint() (string, error) {
	return value.Fingerprint(s.Text, s.Params)
}
