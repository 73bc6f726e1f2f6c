package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cypherq/internal/catalog"
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/config"
	"github.com/roach88/cypherq/internal/harness"
	"github.com/roach88/cypherq/internal/neo4jrun"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Record bool   // record passing statements in the catalog
	Run    bool   // execute passing statements against Neo4j
	Write  bool   // route executions as writes
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name        string         `json:"name"`
	File        string         `json:"file"`
	Pass        bool           `json:"pass"`
	Text        string         `json:"text,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Code        string         `json:"error_code,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Rows        *int           `json:"rows,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

// CompileResult holds the overall compile result.
type CompileResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scenario|dir>...",
		Short: "Compile scenarios into Cypher statements",
		Long: `Compile scenario files into Cypher statements.

Each scenario is compiled against its CUE schema and checked against its
expectation and, when present, its golden file. Golden files live in a
"golden" directory beside the scenario directory, named after the scenario.

Passing statements can be recorded in the catalog (--record, or
catalog.enabled in the config) and executed against Neo4j (--run).

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  cypherq compile ./testdata/scenarios
  cypherq compile ./testdata/scenarios --filter "where_*"
  cypherq compile ./testdata/scenarios --update
  cypherq compile ./testdata/scenarios/create_props.yaml --run --write
  cypherq compile ./testdata/scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record passing statements in the catalog")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "execute passing statements against Neo4j")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "execute with write routing (with --run)")

	return cmd
}

// session carries the optional sinks of one compile run.
type session struct {
	catalog *catalog.Catalog
	runner  *neo4jrun.Runner
	mode    neo4jrun.Mode
}

func runCompile(ctx context.Context, opts *CompileOptions, args []string, cmd *cobra.Command) error {
	var scenarioFiles []string
	for _, arg := range args {
		files, err := collectScenarioFiles(arg, opts.Filter)
		if err != nil {
			return err
		}
		scenarioFiles = append(scenarioFiles, files...)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputCompileJSON(cmd, CompileResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	s := &session{}
	if opts.Record || opts.Config.Catalog.Enabled {
		cat, err := catalog.Open(opts.Config.Catalog.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open catalog", err)
		}
		defer cat.Close()
		s.catalog = cat
	}
	if opts.Run {
		svc, closeFn, err := opts.connect(ctx, opts.Config.Neo4j)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to neo4j", err)
		}
		defer closeFn()
		s.runner = neo4jrun.NewRunner(svc, opts.Config.Neo4j.Timeout)
		if opts.Write {
			s.mode = neo4jrun.Write
		}
	}

	result := CompileResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, file := range scenarioFiles {
		sr := compileScenario(ctx, file, opts, s)
		if opts.Format != "json" {
			printScenarioText(cmd, opts, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputCompileJSON(cmd, result)
	}
	return outputCompileText(cmd, result)
}

// collectScenarioFiles expands one argument: a scenario file, or a
// directory walked for YAML files.
func collectScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}
	if !info.IsDir() {
		ok, err := matchesFilter(path, filter)
		if err != nil || !ok {
			return nil, err
		}
		return []string{path}, nil
	}
	files, err := findScenarioFiles(path, filter)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	return files, nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		ok, err := matchesFilter(path, filter)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// matchesFilter matches the file name without extension against filter.
func matchesFilter(path, filter string) (bool, error) {
	if filter == "" {
		return true, nil
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	matched, err := filepath.Match(filter, name)
	if err != nil {
		return false, NewExitError(ExitCommandError, fmt.Sprintf("invalid filter pattern: %v", err))
	}
	return matched, nil
}

// applyCompileDefaults fills the settings a scenario leaves empty from the
// configuration.
func applyCompileDefaults(s *harness.Scenario, c config.CompileConfig) {
	if s.Strategy == "" {
		s.Strategy = c.Strategy
	}
	if s.Separator == "" {
		s.Separator = c.Separator
	}
	if s.ParamPrefix == "" {
		s.ParamPrefix = c.ParamPrefix
	}
	if s.RelationshipStyle == "" {
		s.RelationshipStyle = c.RelationshipStyle
	}
}

// compileScenario compiles one scenario file and feeds a passing statement
// to the session sinks.
func compileScenario(ctx context.Context, file string, opts *CompileOptions, s *session) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
		sr.Pass = false
		return sr
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	sr.Name = scenario.Name
	applyCompileDefaults(scenario, opts.Config.Compile)

	result, err := harness.Run(scenario)
	if err != nil {
		return fail("compilation failed: %v", err)
	}
	sr.Text = result.Statement.Text
	sr.Params = result.Statement.Params
	sr.Code = result.Code
	sr.Errors = append(sr.Errors, result.Errors...)

	goldenPath := goldenFilePath(file, scenario.Name)
	if opts.Update {
		if err := updateGoldenFile(scenario, result, goldenPath); err != nil {
			return fail("failed to update golden file: %v", err)
		}
	} else if _, err := os.Stat(goldenPath); err == nil {
		match, err := compareWithGolden(scenario, result, goldenPath)
		if err != nil {
			return fail("golden comparison failed: %v", err)
		}
		if !match {
			sr.Errors = append(sr.Errors, "statement does not match golden file (run with --update to regenerate)")
		}
	}

	sr.Pass = len(sr.Errors) == 0
	if !sr.Pass || result.Code != "" {
		return sr
	}

	if s.catalog != nil {
		strategy, err := compiler.ParseStrategy(scenario.Strategy)
		if err != nil {
			return fail("record statement: %v", err)
		}
		fp, err := s.catalog.Record(ctx, scenario.Name, strategy, result.Statement)
		if err != nil {
			return fail("%v", err)
		}
		sr.Fingerprint = fp
	}
	if s.runner != nil {
		rows, err := s.runner.Run(ctx, s.mode, result.Statement)
		if err != nil {
			return fail("%v", err)
		}
		n := len(rows)
		sr.Rows = &n
	}
	return sr
}

// goldenFilePath returns the golden file of a scenario: the "golden"
// directory beside the scenario's directory, as in testdata/scenarios and
// testdata/golden.
func goldenFilePath(scenarioFile, name string) string {
	root := filepath.Dir(filepath.Dir(scenarioFile))
	return filepath.Join(root, "golden", name+".golden")
}

// updateGoldenFile writes the current statement snapshot as the golden file.
func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := harness.NewSnapshot(scenario, result).MarshalCanonical()
	if err != nil {
		return fmt.Errorf("failed to marshal statement: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the statement snapshot against the golden file.
func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	currentData, err := harness.NewSnapshot(scenario, result).MarshalCanonical()
	if err != nil {
		return false, fmt.Errorf("failed to marshal current statement: %w", err)
	}
	return bytes.Equal(goldenData, currentData), nil
}

func printScenarioText(cmd *cobra.Command, opts *CompileOptions, sr ScenarioResult) {
	w := cmd.OutOrStdout()
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}

	switch {
	case opts.Update:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
	case sr.Code != "":
		fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.Code)
	default:
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
	}
	if sr.Text != "" {
		fmt.Fprintf(w, "  %s\n", sr.Text)
	}
	if opts.Verbose {
		if len(sr.Params) > 0 {
			params, _ := json.Marshal(sr.Params)
			fmt.Fprintf(w, "  params: %s\n", params)
		}
		if sr.Fingerprint != "" {
			fmt.Fprintf(w, "  fingerprint: %s\n", sr.Fingerprint)
		}
	}
	if sr.Rows != nil {
		fmt.Fprintf(w, "  rows: %d\n", *sr.Rows)
	}
}

// outputCompileJSON outputs the compile result as JSON.
func outputCompileJSON(cmd *cobra.Command, result CompileResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if result.Failed == 0 {
		return f.encode(CLIResponse{Status: "ok", Data: result})
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: "E_COMPILE_FAILED", Message: msg},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputCompileText outputs the compile summary as text.
func outputCompileText(cmd *cobra.Command, result CompileResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Compile Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
