package core

import (
	"strings"

	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// NormalizeValue is the key values are grouped by. Path-like properties are
// resolved against the project directory so different spellings of one
// location collapse; everything else is compared case-insensitively with
// surrounding whitespace dropped, so blank and empty values share a group.
func NormalizeValue(p *msbuild.Project, name, value string) string {
	trimmed := strings.TrimSpace(value)
	if types.IsPathProperty(name) && trimmed != "" {
		return msbuild.ResolvePath(p.Dir(), value)
	}
	return strings.ToLower(trimmed)
}
