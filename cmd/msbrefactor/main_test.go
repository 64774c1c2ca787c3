package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/msbrefactor/internal/display"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const projectTemplate = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="14.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <OutputType>%TYPE%</OutputType>
    <OutputPath>%OUT%</OutputPath>
  </PropertyGroup>
  <PropertyGroup Condition="'$(Configuration)|$(Platform)' == 'Release|AnyCPU'">
    <Optimize>true</Optimize>
  </PropertyGroup>
</Project>
`

func project(outputType, outputPath string) string {
	return strings.NewReplacer("%TYPE%", outputType, "%OUT%", outputPath).Replace(projectTemplate)
}

// setupTree writes three managed projects under a fresh root. The home
// directory is redirected so a user config cannot leak into the test.
func setupTree(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	files := map[string]string{
		"A/A.csproj": project("Exe", `..\bin\`),
		"B/B.csproj": project("Exe", `..\bin`),
		"C/C.csproj": project("Library", `bin\Debug\`),
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// run executes the CLI in process with colours off.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	err := app.Run(append([]string{"msbrefactor", "--no-color"}, args...))
	return stdout.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestScanJSON(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "scan")
	require.NoError(t, err)

	var view display.ScanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 3, view.Discovered)
	assert.Equal(t, 3, view.Loaded)
	assert.Empty(t, view.Failures)
	require.Len(t, view.Configurations, 1)
	assert.Equal(t, "Release", view.Configurations[0].Value)
	assert.Equal(t, 3, view.Configurations[0].Count)
}

func TestScanReportsBrokenFiles(t *testing.T) {
	root := setupTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Broken.csproj"), []byte("<Project"), 0o644))

	out, err := run(t, "--root", root, "--format", "json", "scan")
	require.ErrorIs(t, err, errPartialFailure)

	var view display.ScanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 4, view.Discovered)
	assert.Equal(t, 3, view.Loaded)
	require.Len(t, view.Failures, 1)
	assert.Equal(t, "Broken.csproj", view.Failures[0].Path)
}

func TestPropsMinCount(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "props", "--min-count", "3")
	require.NoError(t, err)

	var views []display.PropertyView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, v.Name)
		assert.Equal(t, 3, v.Owners)
	}
	assert.ElementsMatch(t, []string{"OutputType", "OutputPath"}, names)
}

func TestShowGroupsByNormalizedValue(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "show", "outputpath")
	require.NoError(t, err)

	var view display.PropertyView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "OutputPath", view.Name)
	require.Len(t, view.Values, 2)
	assert.Equal(t, 2, view.Values[0].Count)
	assert.Equal(t, []string{filepath.Join("A", "A.csproj"), filepath.Join("B", "B.csproj")}, view.Values[0].Projects)
}

func TestShowSuggestsCloseNames(t *testing.T) {
	root := setupTree(t)

	_, err := run(t, "--root", root, "show", "OutputTyp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "OutputType")
}

func TestMoveWritesSheetAndAttachesImport(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "move", "OutputType", "Exe")
	require.NoError(t, err)

	var result display.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Changes, 1)
	assert.True(t, result.Changes[0].ReferenceDeleted)
	assert.Len(t, result.Changes[0].Removed, 3)
	require.NotNil(t, result.Save)
	assert.True(t, result.Save.SheetSaved)
	assert.Len(t, result.Save.Attached, 3)

	sheet := readFile(t, filepath.Join(root, "Common.props"))
	assert.Contains(t, sheet, "<OutputType>Exe</OutputType>")
	for _, rel := range []string{"A/A.csproj", "B/B.csproj", "C/C.csproj"} {
		content := readFile(t, filepath.Join(root, filepath.FromSlash(rel)))
		assert.NotContains(t, content, "<OutputType>", rel)
		assert.Contains(t, content, `<Import Project="..\Common.props"`, rel)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	root := setupTree(t)
	before := readFile(t, filepath.Join(root, "A", "A.csproj"))

	out, err := run(t, "--root", root, "remove", "--dry-run", "OutputType", "Optimize")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")

	assert.Equal(t, before, readFile(t, filepath.Join(root, "A", "A.csproj")))
	_, err = os.Stat(filepath.Join(root, "Common.props"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveValueOnlyTouchesItsGroup(t *testing.T) {
	root := setupTree(t)

	_, err := run(t, "--root", root, "remove-value", "OutputPath", `bin\Debug`)
	require.NoError(t, err)

	assert.NotContains(t, readFile(t, filepath.Join(root, "C", "C.csproj")), "<OutputPath>")
	assert.Contains(t, readFile(t, filepath.Join(root, "A", "A.csproj")), "<OutputPath>")
}

func TestRemoveValueUnknownValue(t *testing.T) {
	root := setupTree(t)

	_, err := run(t, "--root", root, "remove-value", "OutputType", "WinExe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `has no value "WinExe"`)
}

func TestRemoveXMLStripsConditionalBranches(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "remove-xml", "Optimize")
	require.NoError(t, err)

	var result display.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Changes, 1)
	assert.Equal(t, 3, result.Changes[0].Elements)
	assert.NotContains(t, readFile(t, filepath.Join(root, "B", "B.csproj")), "Optimize")
}

func TestBuildReport(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--format", "json", "build-report", "bin")
	require.NoError(t, err)

	var report struct {
		Matching   []struct{ Project string } `json:"matching"`
		Mismatched []struct{ Project string } `json:"mismatched"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Matching, 2)
	require.Len(t, report.Mismatched, 1)
	assert.Equal(t, filepath.Join("C", "C.csproj"), report.Mismatched[0].Project)
}

func TestBuildReportNeedsDirectory(t *testing.T) {
	root := setupTree(t)

	_, err := run(t, "--root", root, "build-report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output directory")
}

func TestGlobalFlagOverrides(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--configuration", "Release", "--format", "json", "show", "Optimize")
	require.NoError(t, err)
	var view display.PropertyView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 3, view.Owners)

	_, err = run(t, "--root", root, "show", "Optimize")
	require.Error(t, err, "Optimize is only defined under Release")

	_, err = run(t, "--root", root, "--global", "NoEquals", "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NAME=VALUE")
}

func TestSetGlobalReevaluates(t *testing.T) {
	root := setupTree(t)
	before := readFile(t, filepath.Join(root, "A", "A.csproj"))

	out, err := run(t, "--root", root, "--format", "json", "set-global", "Configuration", "Release")
	require.NoError(t, err)

	var result globalResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Global.Changed)
	assert.Equal(t, "Debug", result.Global.Old)
	assert.Equal(t, 4, result.Global.Projects, "three projects and the property sheet")
	var names []string
	for _, p := range result.Properties {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "Optimize")

	assert.Equal(t, before, readFile(t, filepath.Join(root, "A", "A.csproj")))
}

func TestConfigInitShowValidate(t *testing.T) {
	root := setupTree(t)

	out, err := run(t, "--root", root, "--sheet", "Shared.props", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created")
	assert.FileExists(t, filepath.Join(root, ".msbrefactor.kdl"))

	_, err = run(t, "--root", root, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = run(t, "--root", root, "--format", "json", "config", "show")
	require.NoError(t, err)
	var shown struct {
		Project struct{ PropertySheet string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "Shared.props", shown.Project.PropertySheet)

	out, err = run(t, "--root", root, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Shared.props")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "msbrefactor")
	assert.Contains(t, out, "Build ID")
}

func TestDebugTraceWrittenWhenEnabled(t *testing.T) {
	root := setupTree(t)
	traceDir := t.TempDir()
	t.Setenv("DEBUG", "1")

	_, err := run(t, "--root", root, "--debug-dir", traceDir, "scan")
	require.NoError(t, err)

	traces, err := filepath.Glob(filepath.Join(traceDir, "trace-*.log"))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	content := readFile(t, traces[0])
	assert.Contains(t, content, "[DEBUG:SCAN] discovered 3 project files")
	assert.Contains(t, content, "[DEBUG:INDEX]")
}
