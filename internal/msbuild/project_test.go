package msbuild

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

func TestLoad_EvaluatesActiveBranch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A", "A.csproj"), managedProject)

	p := loadProject(t, path, debugAnyCPU())

	assert.Equal(t, types.KindManaged, p.Kind())
	assert.False(t, p.IsDirty())

	out, ok := p.GetProperty("outputpath")
	require.True(t, ok)
	assert.Equal(t, `bin\Debug\`, out.EvaluatedValue)
	assert.Equal(t, `bin\Debug\`, out.UnevaluatedValue)
	assert.Equal(t, types.OriginLocal, out.Origin)

	_, ok = p.GetProperty("UniqueforDebug")
	assert.True(t, ok)

	// Conditioned on an empty global, so the markup never assigns it
	cfg, ok := p.GetProperty("Configuration")
	require.True(t, ok)
	assert.Equal(t, "Debug", cfg.EvaluatedValue)
	assert.Equal(t, types.OriginGlobal, cfg.Origin)

	var local []string
	for _, prop := range p.LocalProperties() {
		local = append(local, prop.Name)
	}
	assert.Equal(t, []string{"AssemblyName", "OutputPath", "OutputType", "UniqueforDebug"}, local)
}

func TestLoad_ReservedAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MSBREFACTOR_TEST_ENV", "from-env")
	path := writeFile(t, filepath.Join(dir, "Tool.csproj"), `<Project>
  <PropertyGroup>
    <MSBuildProjectName>Overridden</MSBuildProjectName>
    <Name>$(MSBuildProjectName)</Name>
    <FromEnv>$(MSBREFACTOR_TEST_ENV)</FromEnv>
    <Escaped>a%3Bb</Escaped>
    <Func>$(Name.ToUpper())</Func>
  </PropertyGroup>
</Project>`)

	p := loadProject(t, path, debugAnyCPU())

	name, _ := p.GetProperty("Name")
	assert.Equal(t, "Tool", name.EvaluatedValue)

	reserved, ok := p.GetProperty("MSBuildProjectName")
	require.True(t, ok)
	assert.Equal(t, types.OriginReserved, reserved.Origin)
	assert.Equal(t, "Tool", reserved.EvaluatedValue)

	env, _ := p.GetProperty("FromEnv")
	assert.Equal(t, "from-env", env.EvaluatedValue)
	assert.Equal(t, types.OriginLocal, env.Origin)

	direct, ok := p.GetProperty("MSBREFACTOR_TEST_ENV")
	require.True(t, ok)
	assert.Equal(t, types.OriginEnvironment, direct.Origin)

	escaped, _ := p.GetProperty("Escaped")
	assert.Equal(t, "a;b", escaped.EvaluatedValue)

	fn, _ := p.GetProperty("Func")
	assert.Equal(t, "$(Name.ToUpper())", fn.EvaluatedValue)
}

func TestLoad_GlobalCannotBeOverridden(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)

	p := loadProject(t, path, types.NewGlobalContext("Release", "x86"))

	cfg, ok := p.GetProperty("Configuration")
	require.True(t, ok)
	assert.Equal(t, "Release", cfg.EvaluatedValue)
	assert.Equal(t, "Debug", cfg.UnevaluatedValue)
	assert.Equal(t, types.OriginLocal, cfg.Origin)

	platform, _ := p.GetProperty("Platform")
	assert.Equal(t, types.OriginGlobal, platform.Origin)
}

func TestLoad_Imports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Common.props"), `<Project>
  <Import Project="src\A.csproj" />
  <PropertyGroup>
    <SharedProp>shared</SharedProp>
    <AssemblyName>FromSheet</AssemblyName>
    <SheetDir>$(MSBuildThisFileDirectory)</SheetDir>
  </PropertyGroup>
</Project>`)
	writeFile(t, filepath.Join(dir, "props", "one.props"), `<Project><PropertyGroup><One>1</One></PropertyGroup></Project>`)
	writeFile(t, filepath.Join(dir, "props", "two.props"), `<Project><PropertyGroup><Two>2</Two></PropertyGroup></Project>`)
	path := writeFile(t, filepath.Join(dir, "src", "A.csproj"), `<Project>
  <Import Project="..\Common.props" />
  <Import Project="..\missing.props" />
  <ImportGroup Condition="'$(Configuration)' == 'Debug'">
    <Import Project="..\props\*.props" />
  </ImportGroup>
  <PropertyGroup>
    <AssemblyName>A</AssemblyName>
  </PropertyGroup>
</Project>`)

	p := loadProject(t, path, debugAnyCPU())

	shared, ok := p.GetProperty("SharedProp")
	require.True(t, ok)
	assert.Equal(t, types.OriginImported, shared.Origin)

	asm, _ := p.GetProperty("AssemblyName")
	assert.Equal(t, "A", asm.EvaluatedValue)
	assert.Equal(t, types.OriginLocal, asm.Origin)

	sheetDir, _ := p.GetProperty("SheetDir")
	assert.Equal(t, dir+string(filepath.Separator), sheetDir.EvaluatedValue)

	one, _ := p.GetProperty("One")
	two, _ := p.GetProperty("Two")
	assert.Equal(t, "1", one.EvaluatedValue)
	assert.Equal(t, "2", two.EvaluatedValue)

	imports := p.Imports()
	require.Len(t, imports, 5)
	assert.True(t, imports[0].Found)
	assert.Equal(t, filepath.Join(dir, "Common.props"), imports[0].Path)
	// the sheet's import of the project itself is a cycle and is skipped
	assert.False(t, imports[1].Found)
	assert.False(t, imports[2].Found)
	assert.True(t, imports[3].Found)
	assert.True(t, imports[4].Found)

	assert.True(t, p.HasImportOf("common.PROPS"))
	assert.False(t, p.HasImportOf("Other.props"))
}

func TestLoad_LaterImportWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Late.props"), `<Project><PropertyGroup><AssemblyName>Late</AssemblyName></PropertyGroup></Project>`)
	path := writeFile(t, filepath.Join(dir, "A.csproj"), `<Project>
  <PropertyGroup><AssemblyName>A</AssemblyName></PropertyGroup>
  <Import Project="Late.props" />
</Project>`)

	p := loadProject(t, path, debugAnyCPU())

	asm, _ := p.GetProperty("AssemblyName")
	assert.Equal(t, "Late", asm.EvaluatedValue)
	assert.Equal(t, types.OriginImported, asm.Origin)
	assert.Empty(t, p.LocalProperties())
}

func TestLoad_Choose(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), `<Project>
  <Choose>
    <When Condition="'$(Configuration)' == 'Release'">
      <PropertyGroup><Optimize>true</Optimize></PropertyGroup>
    </When>
    <When Condition="'$(Platform)' == 'x86'">
      <PropertyGroup><Optimize>x86</Optimize></PropertyGroup>
    </When>
    <Otherwise>
      <PropertyGroup><Optimize>false</Optimize></PropertyGroup>
    </Otherwise>
  </Choose>
</Project>`)

	tests := []struct {
		cfg, platform, want string
	}{
		{"Release", "x86", "true"},
		{"Debug", "x86", "x86"},
		{"Debug", "AnyCPU", "false"},
	}
	for _, tt := range tests {
		p := loadProject(t, path, types.NewGlobalContext(tt.cfg, tt.platform))
		v, _ := p.GetProperty("Optimize")
		assert.Equal(t, tt.want, v.EvaluatedValue, "%s|%s", tt.cfg, tt.platform)
	}
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `<Project><PropertyGroup></Project>`},
		{"wrong root", `<Solution />`},
		{"bad condition", `<Project><PropertyGroup Condition="'$(A)' = 'x'" /></Project>`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".csproj"), tt.content)
			_, err := NewCollection().Load(path, debugAnyCPU())
			require.Error(t, err)

			var pe *msberrors.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, path, pe.FilePath)
		})
	}

	_, err := NewCollection().Load(filepath.Join(dir, "absent.csproj"), debugAnyCPU())
	var pe *msberrors.ParseError
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSetGlobalProperty_DefersEvaluation(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), managedProject)
	p := loadProject(t, path, debugAnyCPU())

	assert.False(t, p.SetGlobalProperty("configuration", "Debug"))
	assert.True(t, p.SetGlobalProperty("Configuration", "Release"))
	assert.True(t, p.IsPendingReevaluation())
	assert.False(t, p.IsDirty())

	out, _ := p.GetProperty("OutputPath")
	assert.Equal(t, `bin\Debug\`, out.EvaluatedValue)

	require.NoError(t, p.ReevaluateIfPending())
	assert.False(t, p.IsPendingReevaluation())

	out, _ = p.GetProperty("OutputPath")
	assert.Equal(t, `bin\Release\`, out.EvaluatedValue)
	_, ok := p.GetProperty("UniqueforDebug")
	assert.False(t, ok)
}

func TestConditionedValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), managedProject+`<!-- trailing -->`)
	p := loadProject(t, path, debugAnyCPU())

	assert.Equal(t, []string{"Debug", "Release"}, p.ConditionedValues("Configuration"))
	assert.Equal(t, []string{"AnyCPU"}, p.ConditionedValues("platform"))
	assert.Nil(t, p.ConditionedValues("TargetFramework"))

	path = writeFile(t, filepath.Join(dir, "B.vcxproj"), `<Project>
  <ItemGroup Label="ProjectConfigurations">
    <ProjectConfiguration Include="Debug|Win32" />
  </ItemGroup>
  <PropertyGroup Condition="'$(Configuration)|$(Platform)'=='Debug|Win32'" />
  <PropertyGroup Condition="'$(Configuration)|$(Platform)'=='release|x64'" />
  <ItemDefinitionGroup Condition="'$(Platform)' == 'x64' Or '$(Configuration)' == 'Scooby'" />
  <PropertyGroup Condition="'Release|Win32' == '$(Configuration)|$(Platform)'" />
</Project>`)
	b := loadProject(t, path, debugAnyCPU())
	assert.Equal(t, []string{"Debug", "release", "Scooby"}, b.ConditionedValues("Configuration"))
	assert.Equal(t, []string{"Win32", "x64"}, b.ConditionedValues("Platform"))
}

func TestOutputPathAndFileName(t *testing.T) {
	dir := t.TempDir()
	managed := loadProject(t, writeFile(t, filepath.Join(dir, "A", "A.csproj"), managedProject), debugAnyCPU())
	assert.Equal(t, strings.ToLower(filepath.Join(dir, "A", "bin", "Debug")), managed.OutputPath())
	assert.Equal(t, "A.dll", managed.OutputFileName())

	exe := loadProject(t, writeFile(t, filepath.Join(dir, "Tool", "Tool.csproj"), `<Project>
  <PropertyGroup><OutputType>WinExe</OutputType></PropertyGroup>
</Project>`), debugAnyCPU())
	assert.Equal(t, "", exe.OutputPath())
	assert.Equal(t, "Tool.exe", exe.OutputFileName())

	native := loadProject(t, writeFile(t, filepath.Join(dir, "N", "Native.vcxproj"), `<Project>
  <PropertyGroup>
    <ConfigurationType>DynamicLibrary</ConfigurationType>
    <OutDir>$(MSBuildProjectDirectory)\..\out\$(Configuration)\</OutDir>
  </PropertyGroup>
</Project>`), debugAnyCPU())
	assert.Equal(t, strings.ToLower(filepath.Join(dir, "out", "Debug")), native.OutputPath())
	assert.Equal(t, "Native.dll", native.OutputFileName())

	sheet := loadProject(t, writeFile(t, filepath.Join(dir, "Common.props"), `<Project />`), debugAnyCPU())
	assert.Equal(t, types.UnsupportedOutputPath, sheet.OutputPath())
	assert.Equal(t, "", sheet.OutputFileName())
}

func TestSetAndRemoveProperty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), managedProject)
	p := loadProject(t, path, debugAnyCPU())

	require.NoError(t, p.SetProperty("AssemblyName", "Renamed"))
	require.NoError(t, p.SetProperty("NewProp", "fresh"))
	assert.True(t, p.IsDirty())

	asm, _ := p.GetProperty("AssemblyName")
	assert.Equal(t, "Renamed", asm.EvaluatedValue)
	np, _ := p.GetProperty("NewProp")
	assert.Equal(t, types.OriginLocal, np.Origin)

	ok, err := p.SetUnevaluatedValue("NewProp", "$(AssemblyName).x")
	require.NoError(t, err)
	assert.True(t, ok)
	np, _ = p.GetProperty("NewProp")
	assert.Equal(t, "Renamed.x", np.EvaluatedValue)

	ok, err = p.SetUnevaluatedValue("Missing", "x")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, p.SetProperty("MSBuildProjectName", "x"))

	removed, err := p.RemoveProperty("OutputPath")
	require.NoError(t, err)
	assert.True(t, removed)
	_, ok = p.GetProperty("OutputPath")
	assert.False(t, ok)

	removed, err = p.RemoveProperty("OutputPath")
	require.NoError(t, err)
	assert.False(t, removed)

	written, err := p.Save(false)
	require.NoError(t, err)
	assert.True(t, written)

	content := readString(t, path)
	assert.Contains(t, content, "<AssemblyName>Renamed</AssemblyName>")
	assert.Contains(t, content, "\n    <NewProp>$(AssemblyName).x</NewProp>\n  </PropertyGroup>")
	assert.Contains(t, content, `<OutputPath>bin\Release\</OutputPath>`)
	assert.NotContains(t, content, `bin\Debug`)
	assert.Contains(t, content, `Condition=" '$(Configuration)|$(Platform)' == 'Debug|AnyCPU' "`)
}

func TestSave_SkipsIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), managedProject)
	p := loadProject(t, path, debugAnyCPU())

	require.NoError(t, p.SetProperty("AssemblyName", "B"))
	written, err := p.Save(false)
	require.NoError(t, err)
	assert.True(t, written)
	assert.False(t, p.IsDirty())

	p.MarkDirty()
	written, err = p.Save(false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = p.Save(true)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestSave_PreservesBOMAndCRLF(t *testing.T) {
	dir := t.TempDir()
	content := "\xEF\xBB\xBF" + strings.ReplaceAll(managedProject, "\n", "\r\n")
	path := writeFile(t, filepath.Join(dir, "A.csproj"), content)
	p := loadProject(t, path, debugAnyCPU())

	require.NoError(t, p.SetProperty("Extra", "1"))
	_, err := p.Save(false)
	require.NoError(t, err)

	out := readString(t, path)
	assert.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"))
	assert.Equal(t, strings.Count(out, "\n"), strings.Count(out, "\r\n"))
	assert.Contains(t, out, "<Extra>1</Extra>\r\n")
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "A.csproj"), managedProject)
	p := loadProject(t, path, debugAnyCPU())
	require.NoError(t, p.SetProperty("AssemblyName", "B"))

	// Replace the file by a directory so the write fails even for root
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	written, err := p.Save(false)
	assert.False(t, written)
	var fe *msberrors.FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, msberrors.ErrorTypeSave, fe.Type)
	assert.True(t, p.IsDirty())
}

func TestLoadOrCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build", "Common.props")
	c := NewCollection()

	sheet, err := c.LoadOrCreate(path, debugAnyCPU())
	require.NoError(t, err)
	assert.False(t, sheet.Exists())
	assert.True(t, sheet.IsDirty())
	assert.Equal(t, types.KindSheet, sheet.Kind())

	require.NoError(t, sheet.SetProperty("AssemblyName", "Shared"))
	written, err := sheet.Save(false)
	require.NoError(t, err)
	assert.True(t, written)
	assert.True(t, sheet.Exists())

	content := readString(t, path)
	assert.True(t, strings.HasPrefix(content, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, content, `ToolsVersion="14.0"`)
	assert.Contains(t, content, `xmlns="http://schemas.microsoft.com/developer/msbuild/2003"`)
	assert.Contains(t, content, "\n  <PropertyGroup>\n    <AssemblyName>Shared</AssemblyName>\n  </PropertyGroup>\n</Project>")

	again, err := NewCollection().LoadOrCreate(path, debugAnyCPU())
	require.NoError(t, err)
	assert.True(t, again.Exists())
	asm, _ := again.GetProperty("AssemblyName")
	assert.Equal(t, "Shared", asm.EvaluatedValue)
}

func TestCollection_InMemorySheetVisibleToImporters(t *testing.T) {
	dir := t.TempDir()
	c := NewCollection()
	sheet, err := c.LoadOrCreate(filepath.Join(dir, "Common.props"), debugAnyCPU())
	require.NoError(t, err)
	require.NoError(t, sheet.SetProperty("SharedProp", "fromMemory"))

	path := writeFile(t, filepath.Join(dir, "A.csproj"), `<Project><Import Project="Common.props" /></Project>`)
	p, err := c.Load(path, debugAnyCPU())
	require.NoError(t, err)

	v, ok := p.GetProperty("SharedProp")
	require.True(t, ok)
	assert.Equal(t, "fromMemory", v.EvaluatedValue)
	assert.Equal(t, types.OriginImported, v.Origin)

	assert.Equal(t, 2, c.Len())
	c.UnloadAll()
	assert.Equal(t, 0, c.Len())
}
