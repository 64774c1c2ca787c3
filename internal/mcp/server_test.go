package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
)

func managed(props ...string) string {
	var b strings.Builder
	b.WriteString("<Project ToolsVersion=\"14.0\" xmlns=\"http://schemas.microsoft.com/developer/msbuild/2003\">\n  <PropertyGroup>\n")
	for i := 0; i+1 < len(props); i += 2 {
		b.WriteString("    <" + props[i] + ">" + props[i+1] + "</" + props[i] + ">\n")
	}
	b.WriteString("  </PropertyGroup>\n")
	b.WriteString("  <PropertyGroup Condition=\"'$(Configuration)' == 'Release'\">\n    <Optimize>true</Optimize>\n  </PropertyGroup>\n")
	b.WriteString("</Project>\n")
	return b.String()
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"A/A.csproj": managed("OutputType", "Exe", "WarningLevel", "4"),
		"B/B.csproj": managed("OutputType", "Exe", "WarningLevel", "3"),
		"C/C.csproj": managed("OutputType", "Library"),
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	engine := refactor.New(refactor.Options{Workers: 2})
	_, err := engine.LoadPropertySheet(filepath.Join(root, "Common.props"))
	require.NoError(t, err)
	_, err = engine.LoadDirectory(context.Background(), root)
	require.NoError(t, err)
	return NewServer(engine, nil), root
}

// callTool dispatches to a registered handler the way the SDK would and
// returns the text content.
func callTool(t *testing.T, s *Server, name string, params map[string]any) (string, bool) {
	t.Helper()
	args, err := json.Marshal(params)
	require.NoError(t, err)
	handler, ok := s.handlers[name]
	require.True(t, ok, "tool %s is not registered", name)

	result, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestToolsAreRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	assert.ElementsMatch(t, []string{
		"scan", "list_properties", "show_property", "move_property", "remove_properties",
		"move_value", "remove_value", "remove_xml", "remove_sheet_properties", "set_global",
		"save", "clean", "attach_sheet", "build_report",
	}, s.ToolNames())
}

func TestShowPropertyAndSuggestions(t *testing.T) {
	s, _ := newTestServer(t)

	text, isErr := callTool(t, s, "show_property", map[string]any{"name": "outputtype"})
	require.False(t, isErr, text)
	var view display.PropertyView
	require.NoError(t, json.Unmarshal([]byte(text), &view))
	assert.Equal(t, 3, view.Owners)
	require.Len(t, view.Values, 2)
	assert.Equal(t, "exe", view.Values[0].Value)

	text, isErr = callTool(t, s, "show_property", map[string]any{"name": "OutputTyp"})
	assert.True(t, isErr)
	assert.Contains(t, text, "did you mean OutputType")

	text, isErr = callTool(t, s, "show_property", nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "must provide 'name'")
}

func TestMutationsStayInMemoryUntilSave(t *testing.T) {
	s, root := newTestServer(t)
	before, err := os.ReadFile(filepath.Join(root, "A", "A.csproj"))
	require.NoError(t, err)

	text, isErr := callTool(t, s, "move_value", map[string]any{"name": "OutputType", "value": "exe"})
	require.False(t, isErr, text)
	var resp changesResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Changes, 1)
	assert.True(t, resp.Unsaved)
	assert.Equal(t, "Exe", resp.Changes[0].SheetValue)
	assert.Len(t, resp.Changes[0].Removed, 2)
	assert.Equal(t, 1, resp.Changes[0].Remaining)

	after, err := os.ReadFile(filepath.Join(root, "A", "A.csproj"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	text, isErr = callTool(t, s, "save", nil)
	require.False(t, isErr, text)
	var save display.SaveView
	require.NoError(t, json.Unmarshal([]byte(text), &save))
	assert.True(t, save.SheetSaved)
	assert.ElementsMatch(t, []string{filepath.Join("A", "A.csproj"), filepath.Join("B", "B.csproj")}, save.Saved)

	sheet, err := os.ReadFile(filepath.Join(root, "Common.props"))
	require.NoError(t, err)
	assert.Contains(t, string(sheet), "<OutputType>Exe</OutputType>")
}

func TestRemoveValueUnknown(t *testing.T) {
	s, _ := newTestServer(t)

	text, isErr := callTool(t, s, "remove_value", map[string]any{"name": "WarningLevel", "value": "2"})
	assert.True(t, isErr)
	assert.Contains(t, text, `WarningLevel has no value \"2\"`)
}

func TestSetGlobalReevaluates(t *testing.T) {
	s, _ := newTestServer(t)

	text, isErr := callTool(t, s, "set_global", map[string]any{"name": "Configuration", "value": "Release"})
	require.False(t, isErr, text)
	var resp globalResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.True(t, resp.Global.Changed)

	text, isErr = callTool(t, s, "show_property", map[string]any{"name": "Optimize"})
	require.False(t, isErr, text)
}

func TestRemoveXMLAndRescan(t *testing.T) {
	s, root := newTestServer(t)

	text, isErr := callTool(t, s, "remove_xml", map[string]any{"names": []string{"Optimize"}})
	require.False(t, isErr, text)
	var resp changesResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, 3, resp.Changes[0].Elements)

	// Rescanning reloads the untouched files from disk.
	text, isErr = callTool(t, s, "scan", nil)
	require.False(t, isErr, text)
	var scan display.ScanView
	require.NoError(t, json.Unmarshal([]byte(text), &scan))
	assert.Equal(t, 3, scan.Loaded)
	require.Len(t, scan.Configurations, 1)
	assert.Equal(t, 3, scan.Configurations[0].Count)
	assert.Equal(t, root, scan.Root)
}

func TestBuildReportRequiresDirectory(t *testing.T) {
	s, _ := newTestServer(t)

	text, isErr := callTool(t, s, "build_report", map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, "output_dir")
}

func TestInvalidParameters(t *testing.T) {
	s, _ := newTestServer(t)

	text, isErr := callTool(t, s, "remove_properties", map[string]any{"names": "OutputType"})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid parameters")
}
