package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

const waterXYZ = "3\nwater\nO 0.0 0.0 0.0\nH 0.9572 0.0 0.0\nH -0.2400 0.9266 0.0\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "molstruct", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"parse", "smiles", "formats", "molecules"})

	for _, flag := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout", "server", "api-key"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "formats", "-o", "yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "formats", "--log-level", "verbose")
	assert.ErrorContains(t, err, "logger initialization failed")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "formats", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "config initialization failed")
}

func TestParseCmd_LocalJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "water.xyz", waterXYZ)
	out, err := execute(t, "parse", path, "-o", "json", "--distances")
	require.NoError(t, err)

	var report ParseReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	r := report.Results[0]
	require.NotNil(t, r.Molecule)
	assert.Equal(t, "H2O", r.Molecule.Formula)
	assert.Equal(t, []mtypes.BondDTO{{Atom1: 0, Atom2: 1, Order: 1}, {Atom1: 0, Atom2: 2, Order: 1}}, r.Molecule.Bonds)
	require.Len(t, r.Distances, 2)
	assert.InDelta(t, 0.9572, r.Distances[0].Distance, 1e-9)
}

func TestParseCmd_MultipleFilesKeepOrder(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "water.xyz", waterXYZ)
	bad := writeFile(t, dir, "bad.xyz", "three\n\n")
	other := writeFile(t, dir, "methane.xyz", "5\nmethane\nC 0 0 0\nH 0.63 0.63 0.63\nH -0.63 -0.63 0.63\nH -0.63 0.63 -0.63\nH 0.63 -0.63 -0.63\n")

	out, err := execute(t, "parse", good, bad, other, "-o", "json", "-j", "2")
	require.EqualError(t, err, "1 of 3 files failed to parse")

	var report ParseReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 3)
	assert.Equal(t, good, report.Results[0].File)
	assert.Equal(t, "H2O", report.Results[0].Molecule.Formula)
	assert.Nil(t, report.Results[1].Molecule)
	assert.Equal(t, "MOL_006", report.Results[1].Code)
	assert.Equal(t, "CH4", report.Results[2].Molecule.Formula)
}

func TestParseCmd_SingleFailureReturnsAppError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "odd.xyz", "1\n\nXx 0 0 0\n")
	_, err := execute(t, "parse", path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCode("MOL_017"), errors.GetCode(err))
}

func TestParseCmd_FormatOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "water.txt", waterXYZ)
	out, err := execute(t, "parse", path, "--format", "xyz", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "H2O")
	assert.Contains(t, out, "Formula")

	_, err = execute(t, "parse", path, "--format", "cml")
	assert.Equal(t, errors.ErrorCode("MOL_003"), errors.GetCode(err))
}

func TestParseCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "parse", filepath.Join(t.TempDir(), "nope.xyz"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestParseCmd_TextOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "water.xyz", waterXYZ)
	out, err := execute(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "formula:  H2O")
	assert.Contains(t, out, "name:     water")
	assert.Contains(t, out, "0-1 (order 1)")
}

func TestSMILESCmd_Local(t *testing.T) {
	out, err := execute(t, "smiles", "CCO", "--minimize", "--name", "ethanol", "-o", "json")
	require.NoError(t, err)

	var dto mtypes.MoleculeDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	assert.Equal(t, "C2O", dto.Formula)
	assert.True(t, dto.Minimized)
	require.Len(t, dto.Atoms, 3)
	assert.InDelta(t, -1.24, dto.Atoms[0].X, 1e-9)

	_, err = execute(t, "smiles", "123")
	assert.Error(t, err)
}

func TestSMILESCmd_Distances(t *testing.T) {
	out, err := execute(t, "smiles", "CC", "--distances")
	require.NoError(t, err)
	assert.Contains(t, out, "0-1  1.5800")
}

func TestFormatsCmd_Local(t *testing.T) {
	out, err := execute(t, "formats", "-o", "table")
	require.NoError(t, err)
	for _, want := range []string{"xyz", ".pdb", ".mol", ".sdf", "Description"} {
		assert.Contains(t, out, want)
	}
}

func TestMoleculesCmd_RequiresServer(t *testing.T) {
	_, err := execute(t, "molecules", "get", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--server is required")
}

func TestRemoteCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/molecules/parse":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(mtypes.MoleculeDTO{ID: "abc", Engine: "strict", StructureDTO: mtypes.StructureDTO{Formula: "H2O", AtomCount: 3}})
		case r.URL.Path == "/api/v1/molecules/abc" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/v1/molecules/abc/distances":
			_ = json.NewEncoder(w).Encode(mtypes.DistancesResponse{MoleculeID: "abc", Pair: &mtypes.BondDistanceDTO{Atom1: 0, Atom2: 2, Distance: 1.5}})
		case r.URL.Path == "/api/v1/molecules/search":
			assert.Equal(t, "benzene", r.URL.Query().Get("q"))
			assert.Equal(t, []string{"C", "H"}, r.URL.Query()["element"])
			resp := mtypes.SearchResponse{ElementFacets: map[string]int64{"H": 2, "C": 2}}
			resp.Items = []mtypes.SearchHit{{ID: "abc", Name: "benzene", Formula: "C6H6"}}
			resp.Total, resp.Page, resp.TotalPages = 1, 1, 1
			_ = json.NewEncoder(w).Encode(resp)
		case r.URL.Path == "/api/v1/formats":
			_ = json.NewEncoder(w).Encode(mtypes.FormatsResponse{Formats: []mtypes.FormatDTO{{Name: "remote-only"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"MOL_004","message":"molecule not found"}`))
		}
	}))
	defer srv.Close()

	path := writeFile(t, t.TempDir(), "water.xyz", waterXYZ)
	out, err := execute(t, "--server", srv.URL, "--api-key", "tok", "parse", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"engine": "strict"`)

	out, err = execute(t, "--server", srv.URL, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "remote-only")

	out, err = execute(t, "--server", srv.URL, "molecules", "distances", "abc", "--atom1", "0", "--atom2", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "pair 0-2  1.5000")

	out, err = execute(t, "--server", srv.URL, "molecules", "search", "benzene", "--element", "C,H")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1/1, 1 hits")
	assert.Contains(t, out, "abc  C6H6")
	assert.Contains(t, out, "elements C:2 H:2")

	out, err = execute(t, "--server", srv.URL, "molecules", "delete", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted abc")

	_, err = execute(t, "--server", srv.URL, "molecules", "get", "missing")
	assert.ErrorContains(t, err, "MOL_004")
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	PrintError(cmd, nil)
	assert.Empty(t, buf.String())

	PrintError(cmd, errors.MalformedInput("xyz", "bad count"))
	assert.Contains(t, buf.String(), "MOL_006")
	assert.Contains(t, buf.String(), "bad count")
}

func TestFormatTable(t *testing.T) {
	assert.Empty(t, FormatTable(nil, nil))

	out := FormatTable([]string{"Name", "Formula"}, [][]string{{"water", "H2O"}, {"short"}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, out, "H2O")
	assert.Contains(t, out, "short")
}

func TestPrintResult_NoContextFallsBackToJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, PrintResult(cmd, map[string]int{"atoms": 3}))
	assert.JSONEq(t, `{"atoms":3}`, buf.String())
}

//Personal.AI order the ending
