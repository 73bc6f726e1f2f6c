package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/pattern"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/schema"
)

// DefaultBuildID is stamped on statements of scenarios without a build_id.
const DefaultBuildID = "build-default"

// Harness compiles the steps of one scenario against one build context.
type Harness struct {
	compiler *compiler.Compiler
	builder  *pattern.Builder
	ctx      *compiler.Context
	dec      *decoder
}

// staticID is a build-ID generator that always returns the same ID.
type staticID string

func (s staticID) Generate() string { return string(s) }

type stepFunc func(h *Harness, n *yaml.Node) (string, error)

var stepKinds = map[string]stepFunc{
	"text":          (*Harness).text,
	"expression":    exprStep((*compiler.Compiler).Expression),
	"where":         exprStep((*compiler.Compiler).Where),
	"return":        exprStep((*compiler.Compiler).Return),
	"with":          exprStep((*compiler.Compiler).With),
	"property_list": exprStep((*compiler.Compiler).PropertyList),
	"set":           (*Harness).set,
	"remove":        (*Harness).remove,
	"order_by":      (*Harness).orderBy,
	"pattern":       (*Harness).pattern,
	"navigate":      (*Harness).navigate,
	"path":          (*Harness).path,
}

// Run executes a compile scenario and returns the result.
//
// Each scenario loads its schema into a fresh registry and compiles in a
// fresh build context with a fixed build ID, so the statement is
// reproducible across runs.
//
// Build errors are reported in the result (Code and Failure) so scenarios
// can expect them. Malformed scenarios are returned as errors.
func Run(scenario *Scenario) (*Result, error) {
	result := NewResult()

	reg := schema.NewRegistry()
	if _, err := schema.LoadCUE(reg, scenario.Schema); err != nil {
		if builderr.CodeOf(err) == "" {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		result.Code = string(builderr.CodeOf(err))
		result.Failure = err.Error()
		finish(scenario, result)
		return result, nil
	}

	h, err := newHarness(scenario, reg)
	if err != nil {
		return nil, err
	}

	var parts []string
	for i := range scenario.Steps {
		kind, v, err := single(&scenario.Steps[i])
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		fn, ok := stepKinds[kind]
		if !ok {
			return nil, fmt.Errorf("steps[%d]: unknown step %q", i, kind)
		}
		text, err := fn(h, v)
		if err != nil {
			code := builderr.CodeOf(err)
			if code == "" {
				return nil, fmt.Errorf("steps[%d] %s: %w", i, kind, err)
			}
			result.Code = string(code)
			result.Failure = err.Error()
			break
		}
		result.AddStep(kind, text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	if result.Failure == "" {
		result.Statement = h.ctx.Statement(strings.Join(parts, " "))
	} else {
		result.Statement = compiler.Statement{BuildID: h.ctx.ID, Params: map[string]any{}}
	}
	finish(scenario, result)
	return result, nil
}

func finish(scenario *Scenario, result *Result) {
	for _, msg := range EvaluateExpectation(result, scenario.Expect) {
		result.AddError(msg)
	}
	slog.Debug("scenario compiled",
		"scenario", scenario.Name,
		"steps", len(result.Steps),
		"code", result.Code,
		"pass", result.Pass,
	)
}

func newHarness(s *Scenario, reg *schema.Registry) (*Harness, error) {
	var resOpts []resolve.Option
	if s.Separator != "" {
		resOpts = append(resOpts, resolve.WithSeparator(s.Separator))
	}
	c := compiler.New(resolve.New(reg, resOpts...))

	strategy, err := compiler.ParseStrategy(s.Strategy)
	if err != nil {
		return nil, err
	}
	buildID := s.BuildID
	if buildID == "" {
		buildID = DefaultBuildID
	}
	ctxOpts := []compiler.ContextOption{
		compiler.WithStrategy(strategy),
		compiler.WithIDGenerator(staticID(buildID)),
	}
	if s.ParamPrefix != "" {
		ctxOpts = append(ctxOpts, compiler.WithParameterTable(compiler.NewParamsWithPrefix(s.ParamPrefix)))
	}

	var bOpts []pattern.Option
	if s.RelationshipStyle == StyleUpperSnake {
		bOpts = append(bOpts, pattern.WithTypeNamer(pattern.UpperSnake))
	}

	return &Harness{
		compiler: c,
		builder:  pattern.NewBuilder(c, reg, bOpts...),
		ctx:      compiler.NewContext(ctxOpts...),
		dec:      newDecoder(s.Vars),
	}, nil
}

func exprStep(entry func(*compiler.Compiler, *compiler.Context, expr.Node) (string, error)) stepFunc {
	return func(h *Harness, n *yaml.Node) (string, error) {
		e, err := h.dec.Expr(n)
		if err != nil {
			return "", err
		}
		return entry(h.compiler, h.ctx, e)
	}
}

func (h *Harness) text(n *yaml.Node) (string, error) {
	return str(n)
}

func (h *Harness) set(n *yaml.Node) (string, error) {
	items, err := seq(n, -1)
	if err != nil {
		return "", err
	}
	assignments := make([]compiler.Assignment, len(items))
	for i, item := range items {
		f, err := fields(item, "target", "value")
		if err != nil {
			return "", err
		}
		if f["target"] == nil || f["value"] == nil {
			return "", nodeError(item, "set: target and value are required")
		}
		if assignments[i].Target, err = h.dec.Expr(f["target"]); err != nil {
			return "", err
		}
		if assignments[i].Value, err = h.dec.Expr(f["value"]); err != nil {
			return "", err
		}
	}
	return h.compiler.Set(h.ctx, assignments...)
}

func (h *Harness) remove(n *yaml.Node) (string, error) {
	targets, err := h.dec.list(n, -1)
	if err != nil {
		return "", err
	}
	return h.compiler.Remove(h.ctx, targets...)
}

func (h *Harness) orderBy(n *yaml.Node) (string, error) {
	items, err := seq(n, -1)
	if err != nil {
		return "", err
	}
	keys := make([]compiler.Order, len(items))
	for i, item := range items {
		f, err := fields(item, "expr", "desc")
		if err != nil {
			return "", err
		}
		if f["expr"] == nil {
			return "", nodeError(item, "order_by: expr is required")
		}
		if keys[i].Expr, err = h.dec.Expr(f["expr"]); err != nil {
			return "", err
		}
		if keys[i].Desc, err = flag(f["desc"]); err != nil {
			return "", err
		}
	}
	return h.compiler.OrderBy(h.ctx, keys...)
}

func (h *Harness) pattern(n *yaml.Node) (string, error) {
	p, err := h.dec.Pattern(n)
	if err != nil {
		return "", err
	}
	return h.builder.Render(h.ctx, p)
}

func (h *Harness) navigate(n *yaml.Node) (string, error) {
	p, err := h.navigated(n)
	if err != nil {
		return "", err
	}
	return h.builder.Render(h.ctx, p)
}

func (h *Harness) navigated(n *yaml.Node) (*pattern.Pattern, error) {
	nav, err := h.dec.navigation(n, true)
	if err != nil {
		return nil, err
	}
	p, err := h.builder.Navigate(nav.from, nav.member, nav.rel, nav.to)
	if err != nil {
		return nil, err
	}
	h.dec.declare(nav.to, p.B.Type)
	return p, nil
}

// path decodes {pattern | navigate, then, assign | shortest | all_shortest}.
func (h *Harness) path(n *yaml.Node) (string, error) {
	f, err := fields(n, "pattern", "navigate", "then", "assign", "shortest", "all_shortest")
	if err != nil {
		return "", err
	}

	var first *pattern.Pattern
	switch {
	case f["pattern"] != nil && f["navigate"] != nil:
		return "", nodeError(n, "path: pattern and navigate are mutually exclusive")
	case f["pattern"] != nil:
		first, err = h.dec.Pattern(f["pattern"])
	case f["navigate"] != nil:
		first, err = h.navigated(f["navigate"])
	default:
		return "", nodeError(n, "path: pattern or navigate is required")
	}
	if err != nil {
		return "", err
	}

	p := h.builder.Path(first)
	if f["then"] != nil {
		items, err := seq(f["then"], -1)
		if err != nil {
			return "", err
		}
		for _, item := range items {
			if p, err = h.pathStep(p, item); err != nil {
				return "", err
			}
		}
	}

	switch {
	case f["shortest"] != nil:
		p = p.Shortest(f["shortest"].Value)
	case f["all_shortest"] != nil:
		p = p.AllShortest(f["all_shortest"].Value)
	case f["assign"] != nil:
		p = p.Assign(f["assign"].Value)
	}
	return p.Render(h.ctx)
}

func (h *Harness) pathStep(p *pattern.Path, item *yaml.Node) (*pattern.Path, error) {
	kind, v, err := single(item)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "navigate":
		nav, err := h.dec.navigation(v, false)
		if err != nil {
			return nil, err
		}
		next, err := p.Navigate(nav.member, nav.rel, nav.to)
		if err != nil {
			return nil, err
		}
		segs := next.Patterns()
		h.dec.declare(nav.to, segs[len(segs)-1].B.Type)
		return next, nil
	case "extend":
		f, err := fields(v, "r", "b")
		if err != nil {
			return nil, err
		}
		r, err := h.dec.Rel(f["r"])
		if err != nil {
			return nil, err
		}
		b, err := h.dec.Node(f["b"])
		if err != nil {
			return nil, err
		}
		return p.Extend(r, b), nil
	}
	return nil, nodeError(item, "unknown path step %q", kind)
}

// ErrFailed is returned by RunFile when a scenario does not pass.
var ErrFailed = errors.New("scenario failed")

// RunFile loads and runs the scenario at path.
func RunFile(path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario)
	if err != nil {
		return scenario, nil, err
	}
	if !result.Pass {
		return scenario, result, fmt.Errorf("%s: %w", scenario.Name, ErrFailed)
	}
	return scenario, result, nil
}
