package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/cypherq/internal/config"
	"github.com/roach88/cypherq/internal/neo4jrun"
	neo4jrun_mocks "github.com/roach88/cypherq/internal/neo4jrun/mocks"
)

const (
	schemaDir    = "../harness/testdata/schema"
	scenariosDir = "../harness/testdata/scenarios"
)

// compileResponse is the JSON shape of a compile run.
type compileResponse struct {
	Status string        `json:"status"`
	Data   CompileResult `json:"data"`
	Error  *CLIError     `json:"error"`
}

// tempScenario writes a scenario under <tmp>/scenarios and returns its path.
func tempScenario(t *testing.T, name, body string) string {
	t.Helper()
	abs, err := filepath.Abs(schemaDir)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name+".yaml")
	content := "name: " + name + "\ndescription: d\nschema: " + abs + "\n" + body
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// mockConnect returns a connect function serving svc.
func mockConnect(svc neo4jrun.Service) func(context.Context, config.Neo4jConfig) (neo4jrun.Service, func(), error) {
	return func(context.Context, config.Neo4jConfig) (neo4jrun.Service, func(), error) {
		return svc, func() {}, nil
	}
}

func TestCompile_HarnessScenarios(t *testing.T) {
	out, err := execute(t, nil, "compile", scenariosDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ where_params")
	assert.Contains(t, out, "MATCH (movie:Movie) WHERE ((movie.Title = $p0) AND (movie.Year = $p1)) RETURN movie.Title AS Title")
	assert.Contains(t, out, "✓ null_pattern_variables (NULL_ARB_VARIABLES)")
	assert.Contains(t, out, "Compile Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, nil, "compile", scenariosDir, "--format", "json", "--filter", "create_*")
	require.NoError(t, err)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)

	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "create_props", sr.Name)
	assert.True(t, sr.Pass)
	assert.Equal(t, "CREATE (m:Movie $p0) RETURN m", sr.Text)
	assert.Equal(t, map[string]any{"p0": map[string]any{"Title": "X", "Year": float64(2017)}}, sr.Params)
}

func TestCompile_NoScenarios(t *testing.T) {
	out, err := execute(t, nil, "compile", scenariosDir, "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	out, err = execute(t, nil, "compile", scenariosDir, "--filter", "nothing_*", "--format", "json")
	require.NoError(t, err)
	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestCompile_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing path", []string{"compile", "/does/not/exist"}, "scenario path not found"},
		{"bad filter", []string{"compile", scenariosDir, "--filter", "["}, "invalid filter pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, nil, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := execute(t, nil, "compile")
	assert.Error(t, err, "at least one path is required")
}

func TestCompile_FailingScenario(t *testing.T) {
	path := tempScenario(t, "wrong_text", `vars: {movie: Movie}
steps:
  - text: "MATCH (movie:Movie)"
  - where: {gt: [{path: movie.Year}, 2000]}
expect:
  text: "MATCH (movie:Movie) WHERE movie.Year > 2000"
`)
	out, err := execute(t, nil, "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_text")
	assert.Contains(t, out, "Expectation failed: text")
	assert.Contains(t, out, "1 failed")

	out, err = execute(t, nil, "compile", path, "--format", "json")
	require.Error(t, err)
	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_COMPILE_FAILED", resp.Error.Code)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestCompile_MalformedScenario(t *testing.T) {
	path := tempScenario(t, "bad_step", `steps:
  - where: {frobnicate: 1}
`)
	out, err := execute(t, nil, "compile", path)
	require.Error(t, err)
	assert.Contains(t, out, "compilation failed")
	assert.Contains(t, out, `unknown expression "frobnicate"`)
}

func TestCompile_UpdateGolden(t *testing.T) {
	path := tempScenario(t, "return_one", "steps:\n  - text: RETURN 1\n")
	golden := filepath.Join(filepath.Dir(filepath.Dir(path)), "golden", "return_one.golden")

	out, err := execute(t, nil, "compile", path, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ return_one (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"build_id": "build-default",
		"name": "return_one",
		"params": {},
		"strategy": "with-params",
		"text": "RETURN 1"
	}`, string(data))

	_, err = execute(t, nil, "compile", path)
	require.NoError(t, err, "matches the golden file it just wrote")

	require.NoError(t, os.WriteFile(golden, []byte(`{"text":"RETURN 2"}`), 0644))
	out, err = execute(t, nil, "compile", path)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestCompile_ConfigDefaults(t *testing.T) {
	path := tempScenario(t, "no_params_default", `vars: {movie: Movie}
steps:
  - where: {eq: [{path: movie.Title}, X]}
expect:
  text: 'WHERE (movie.Title = "X")'
`)
	cfg := writeConfig(t, "compile:\n  strategy: no-params\n")

	out, err := execute(t, nil, "compile", "--config", cfg, path)
	require.NoError(t, err, out)

	_, err = execute(t, nil, "compile", path)
	require.Error(t, err, "the default strategy parameterizes the constant")
}

func TestCompile_RecordAndCatalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "catalog.db")
	cfg := writeConfig(t, "catalog:\n  path: "+db+"\n")

	out, err := execute(t, nil, "compile", "--config", cfg, "--record", "--format", "json", scenariosDir)
	require.NoError(t, err, out)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	fingerprints := map[string]string{}
	for _, sr := range resp.Data.Scenarios {
		if sr.Code != "" {
			assert.Empty(t, sr.Fingerprint, "failed builds are not recorded")
			continue
		}
		assert.NotEmpty(t, sr.Fingerprint, sr.Name)
		fingerprints[sr.Name] = sr.Fingerprint
	}
	require.Contains(t, fingerprints, "where_params")

	out, err = execute(t, nil, "catalog", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "where_params")
	assert.Contains(t, out, "CREATE (m:Movie $p0) RETURN m")

	out, err = execute(t, nil, "catalog", "list", "--config", cfg, "--name", "where_params", "--format", "json")
	require.NoError(t, err)
	var listed struct {
		Data []struct {
			Name string `json:"name"`
			Hits int64  `json:"hits"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "where_params", listed.Data[0].Name)
	assert.Equal(t, int64(1), listed.Data[0].Hits)

	out, err = execute(t, nil, "catalog", "show", "--db", db, fingerprints["where_params"])
	require.NoError(t, err)
	assert.Contains(t, out, "name: where_params")
	assert.Contains(t, out, "param p0: X")
	assert.Contains(t, out, "param p1: 2017")

	_, err = execute(t, nil, "compile", "--config", cfg, "--record", scenariosDir)
	require.NoError(t, err)
	out, err = execute(t, nil, "catalog", "show", "--db", db, fingerprints["where_params"])
	require.NoError(t, err)
	assert.Contains(t, out, "hits: 2", "recompiling counts a hit")
}

func TestCompile_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := neo4jrun_mocks.NewMockService(ctrl)
	svc.EXPECT().DatabaseName().Return("neo4j").AnyTimes()
	svc.EXPECT().
		ExecuteReadQuery(gomock.Any(), "MATCH (movie:Movie) WHERE ((movie.Title = $p0) AND (movie.Year = $p1)) RETURN movie.Title AS Title", gomock.Any()).
		Return([]*neo4j.Record{{Keys: []string{"Title"}, Values: []any{"X"}}}, nil)

	out, err := execute(t, mockConnect(svc), "compile", "--run", filepath.Join(scenariosDir, "where_params.yaml"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "rows: 1")
}

func TestCompile_RunWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := neo4jrun_mocks.NewMockService(ctrl)
	svc.EXPECT().DatabaseName().Return("neo4j").AnyTimes()
	svc.EXPECT().
		ExecuteWriteQuery(gomock.Any(), "CREATE (m:Movie $p0) RETURN m", gomock.Any()).
		Return([]*neo4j.Record{}, nil)

	out, err := execute(t, mockConnect(svc), "compile", "--run", "--write", filepath.Join(scenariosDir, "create_props.yaml"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "rows: 0")
}

func TestCompile_RunFailureFailsScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := neo4jrun_mocks.NewMockService(ctrl)
	svc.EXPECT().DatabaseName().Return("neo4j").AnyTimes()
	svc.EXPECT().
		ExecuteReadQuery(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, assert.AnError)

	out, err := execute(t, mockConnect(svc), "compile", "--run", filepath.Join(scenariosDir, "where_params.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ where_params")
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		path   string
		filter string
		want   bool
	}{
		{"a/where_params.yaml", "", true},
		{"a/where_params.yaml", "where_*", true},
		{"a/where_params.yml", "where_params", true},
		{"a/create_props.yaml", "where_*", false},
	}
	for _, tt := range tests {
		got, err := matchesFilter(tt.path, tt.filter)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s ~ %s", tt.path, tt.filter)
	}
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("testdata", "scenarios", "x.yaml"), "where_params")
	assert.Equal(t, filepath.Join("testdata", "golden", "where_params.golden"), got)
}
