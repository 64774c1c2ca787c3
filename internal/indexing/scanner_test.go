package indexing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

const minimalProject = `<Project>
  <PropertyGroup>
    <AssemblyName>X</AssemblyName>
  </PropertyGroup>
</Project>
`

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

func globals() types.GlobalContext {
	return types.NewGlobalContext("Debug", "AnyCPU")
}

func TestScan_IgnoreSubstringFiltersBeforeLoading(t *testing.T) {
	root := writeTree(t, map[string]string{
		"A/A.csproj":            minimalProject,
		"B/B.csproj":            minimalProject,
		"C/C.vcxproj":           minimalProject,
		"Legacy/Old/Old.csproj": `<Project><PropertyGroup>`, // would fail to load if not ignored
		"docs/readme.md":        "not a project",
	})

	s := NewFileScanner(ScanOptions{Ignore: []string{"LEGACY"}, Workers: 2})
	result, err := s.Scan(context.Background(), root, globals(), msbuild.NewCollection())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 3, result.Loaded)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Projects, 3)
	assert.Equal(t, filepath.Join(root, "A", "A.csproj"), result.Projects[0].Path())
	assert.Equal(t, filepath.Join(root, "B", "B.csproj"), result.Projects[1].Path())
	assert.Equal(t, filepath.Join(root, "C", "C.vcxproj"), result.Projects[2].Path())
}

func TestScan_FailuresAreCollected(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Good/Good.csproj": minimalProject,
		"Bad/Bad.csproj":   `<Project><PropertyGroup></Project>`,
		"Odd/Odd.CSPROJ":   minimalProject,
	})

	s := NewFileScanner(ScanOptions{})
	result, err := s.Scan(context.Background(), root, globals(), msbuild.NewCollection())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 2, result.Loaded)
	require.Len(t, result.Failures, 1)

	var pe *msberrors.ParseError
	require.True(t, errors.As(result.Failures[0], &pe))
	assert.Equal(t, filepath.Join(root, "Bad", "Bad.csproj"), pe.FilePath)
}

func TestScan_ExcludeGlobsAndExtensions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/App/App.csproj":         minimalProject,
		"src/App/bin/Debug/X.csproj": minimalProject,
		"src/App/obj/Y.csproj":       minimalProject,
		"tools/Tool.vbproj":          minimalProject,
		"tools/gen/Gen.csproj":       minimalProject,
	})

	s := NewFileScanner(ScanOptions{
		Extensions: []string{"csproj", ".VBPROJ"},
		Exclude:    []string{"**/bin/**", "**/obj/**", "tools/gen/*.csproj"},
	})
	files, err := s.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "App", "App.csproj"),
		filepath.Join(root, "tools", "Tool.vbproj"),
	}, files)

	assert.True(t, s.Matches(root, filepath.Join(root, "x", "New.csproj")))
	assert.False(t, s.Matches(root, filepath.Join(root, "x", "bin", "New.csproj")))
	assert.False(t, s.Matches(root, filepath.Join(root, "x", "New.vcxproj")))
}

func TestScan_SymlinkCycle(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/A.csproj": minimalProject,
	})
	if err := os.Symlink(root, filepath.Join(root, "a", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := NewFileScanner(ScanOptions{FollowSymlinks: true})
	files, err := s.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "A.csproj")}, files)

	s = NewFileScanner(ScanOptions{})
	files, err = s.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestScan_Errors(t *testing.T) {
	s := NewFileScanner(ScanOptions{})

	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), globals(), msbuild.NewCollection())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	root := writeTree(t, map[string]string{"A/A.csproj": minimalProject})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx, root, globals(), msbuild.NewCollection())
	assert.ErrorIs(t, err, context.Canceled)

	file := filepath.Join(root, "A", "A.csproj")
	_, err = s.Discover(context.Background(), file)
	assert.Error(t, err)
}

func TestScan_IncludeGlobs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/App/App.csproj":     minimalProject,
		"src/Lib/Lib.vcxproj":    minimalProject,
		"samples/Demo.csproj":    minimalProject,
		"src/App/bin/Gen.csproj": minimalProject,
	})

	s := NewFileScanner(ScanOptions{
		Include: []string{"src/**"},
		Exclude: []string{"**/bin/**"},
	})
	files, err := s.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "App", "App.csproj"),
		filepath.Join(root, "src", "Lib", "Lib.vcxproj"),
	}, files)

	assert.True(t, s.Matches(root, filepath.Join(root, "src", "New", "New.csproj")))
	assert.False(t, s.Matches(root, filepath.Join(root, "samples", "New.csproj")))
}

func TestScan_ValidatorRejectsBeforeParsing(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Good/Good.csproj": minimalProject,
		"Sln/Wrong.csproj": "Microsoft Visual Studio Solution File, Format Version 12.00\n",
		"Big/Big.csproj":   minimalProject + strings.Repeat(" ", 4096),
	})

	s := NewFileScanner(ScanOptions{MaxFileSizeKB: 2})
	result, err := s.Scan(context.Background(), root, globals(), msbuild.NewCollection())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 1, result.Loaded)
	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		var pe *msberrors.ParseError
		require.True(t, errors.As(f, &pe))
	}
	assert.Equal(t, filepath.Join(root, "Good", "Good.csproj"), result.Projects[0].Path())
}
