package types

import (
	"path/filepath"
	"strings"
)

// Common system-wide constants
const (
	// ToolsVersion written into property sheets created from scratch.
	DefaultToolsVersion = "14.0"

	// MSBuildNamespace is the default xmlns of classic (non-SDK) project files.
	MSBuildNamespace = "http://schemas.microsoft.com/developer/msbuild/2003"

	// UnsupportedOutputPath is reported by OutputPath for kinds that declare no output location.
	UnsupportedOutputPath = "Unsupported project type"

	// Default global property values used when neither config nor flags provide one.
	DefaultConfiguration = "Debug"
	DefaultPlatform      = "AnyCPU"

	// DefaultPropertySheetName is used when no sheet path is configured.
	DefaultPropertySheetName = "Common.props"

	// Axis names harvested from conditions.
	ConfigurationAxis = "Configuration"
	PlatformAxis      = "Platform"
)

// DefaultProjectExtensions are the project kinds scanned when no extension list is configured.
var DefaultProjectExtensions = []string{".csproj", ".vcxproj"}

// ProjectKind classifies a project file by its extension.
type ProjectKind uint8

const (
	KindUnknown ProjectKind = iota
	KindManaged             // .csproj, .vbproj, .fsproj
	KindNative              // .vcxproj
	KindSheet               // .props, .targets
)

func (k ProjectKind) String() string {
	switch k {
	case KindManaged:
		return "managed"
	case KindNative:
		return "native"
	case KindSheet:
		return "sheet"
	default:
		return "unknown"
	}
}

// KindFromPath derives the project kind from the file extension (case-insensitive).
func KindFromPath(path string) ProjectKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csproj", ".vbproj", ".fsproj":
		return KindManaged
	case ".vcxproj":
		return KindNative
	case ".props", ".targets":
		return KindSheet
	default:
		return KindUnknown
	}
}

// Origin tells where the winning definition of an evaluated property came from.
type Origin uint8

const (
	OriginLocal       Origin = iota // defined in the project's own markup
	OriginImported                  // defined in an imported file
	OriginEnvironment               // taken from the process environment
	OriginGlobal                    // supplied only through the global context
	OriginReserved                  // computed by the evaluator (MSBuildProject*)
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginImported:
		return "imported"
	case OriginEnvironment:
		return "environment"
	case OriginGlobal:
		return "global"
	case OriginReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// PathProperties are property names whose values are file-system locations.
// Values of these are compared after resolving against the owning project directory.
var PathProperties = map[string]bool{
	"outputpath":                 true,
	"outdir":                     true,
	"intdir":                     true,
	"baseoutputpath":             true,
	"intermediateoutputpath":     true,
	"baseintermediateoutputpath": true,
}

// IsPathProperty reports whether name holds a file-system location.
func IsPathProperty(name string) bool {
	return PathProperties[strings.ToLower(name)]
}
