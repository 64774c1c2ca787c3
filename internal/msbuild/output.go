package msbuild

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/msbrefactor/internal/types"
)

// OutputPath returns the declared output directory: OutputPath for managed
// projects, OutDir for native ones. The value is resolved against the project
// directory, cleaned and lower-cased. It is empty when the property is not
// defined and types.UnsupportedOutputPath for other kinds.
func (p *Project) OutputPath() string {
	var name string
	switch p.kind {
	case types.KindManaged:
		name = "OutputPath"
	case types.KindNative:
		name = "OutDir"
	default:
		return types.UnsupportedOutputPath
	}
	prop, ok := p.props[strings.ToLower(name)]
	if !ok || strings.TrimSpace(prop.EvaluatedValue) == "" {
		return ""
	}
	return ResolvePath(p.Dir(), prop.EvaluatedValue)
}

// ResolvePath converts an MSBuild path value to a cleaned, lower-cased
// absolute path. Relative values are taken from dir.
func ResolvePath(dir, value string) string {
	hp := toHostPath(strings.TrimSpace(value))
	if !filepath.IsAbs(hp) {
		hp = filepath.Join(dir, hp)
	}
	return strings.ToLower(filepath.Clean(hp))
}

// OutputFileName returns the file name the build would produce, or "" when
// it cannot be derived.
func (p *Project) OutputFileName() string {
	base := strings.TrimSuffix(p.Name(), filepath.Ext(p.path))
	switch p.kind {
	case types.KindManaged:
		if v := p.value("AssemblyName"); v != "" {
			base = v
		}
		switch strings.ToLower(p.value("OutputType")) {
		case "exe", "winexe", "appcontainerexe":
			return base + ".exe"
		case "module":
			return base + ".netmodule"
		default:
			return base + ".dll"
		}
	case types.KindNative:
		if v := p.value("TargetName"); v != "" {
			base = v
		}
		if ext := p.value("TargetExt"); ext != "" {
			return base + ext
		}
		switch strings.ToLower(p.value("ConfigurationType")) {
		case "application":
			return base + ".exe"
		case "dynamiclibrary":
			return base + ".dll"
		case "staticlibrary":
			return base + ".lib"
		default:
			return ""
		}
	}
	return ""
}

func (p *Project) value(name string) string {
	if prop, ok := p.props[strings.ToLower(name)]; ok {
		return strings.TrimSpace(prop.EvaluatedValue)
	}
	return ""
}
