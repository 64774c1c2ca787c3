package refactor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/msbrefactor/internal/core"
)

// csproj builds a minimal managed project. Each entry of props becomes one
// unconditioned property; conditioned is appended verbatim.
func csproj(props map[string]string, conditioned ...string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<Project ToolsVersion=\"14.0\" xmlns=\"http://schemas.microsoft.com/developer/msbuild/2003\">\n")
	b.WriteString("  <PropertyGroup>\n")
	for _, name := range sortedKeys(props) {
		b.WriteString("    <" + name + ">" + props[name] + "</" + name + ">\n")
	}
	b.WriteString("  </PropertyGroup>\n")
	for _, c := range conditioned {
		b.WriteString(c)
	}
	b.WriteString("</Project>\n")
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeTree writes files (slash paths relative to root) and returns root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

// newEngine scans root with default options and loads root/Common.props as
// the property sheet.
func newEngine(t *testing.T, root string) *Engine {
	t.Helper()
	e := New(Options{Workers: 2})
	_, err := e.LoadPropertySheet(filepath.Join(root, "Common.props"))
	require.NoError(t, err)
	_, err = e.LoadDirectory(context.Background(), root)
	require.NoError(t, err)
	return e
}

func readString(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		out[path] = readString(t, path)
		return nil
	}))
	return out
}

func group(t *testing.T, e *Engine, name, value string) *core.ValueGroup {
	t.Helper()
	ref, ok := e.Index().Get(name)
	require.True(t, ok, "property %s not indexed", name)
	g, ok := ref.Value(value)
	require.True(t, ok, "value %q of %s not indexed", value, name)
	return g
}

func owningCounts(e *Engine) map[string]int {
	out := make(map[string]int)
	for _, ref := range e.Index().References() {
		out[ref.Name] = ref.OwningCount()
	}
	return out
}
