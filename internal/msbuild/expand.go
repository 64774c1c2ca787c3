package msbuild

import (
	"path/filepath"
	"strconv"
	"strings"
)

// lookupFunc resolves one property name during expansion.
type lookupFunc func(name string) (string, bool)

// expandProperties replaces every $(Name) reference with its value. Property
// functions, registry lookups, item lists and metadata stay literal. Unknown
// names expand to the empty string.
func expandProperties(raw string, lookup lookupFunc) string {
	if !strings.Contains(raw, "$(") {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		if raw[i] != '$' || i+1 >= len(raw) || raw[i+1] != '(' {
			b.WriteByte(raw[i])
			i++
			continue
		}
		end := matchParen(raw, i+1)
		if end < 0 {
			// Unbalanced reference: keep the remainder verbatim
			b.WriteString(raw[i:])
			break
		}
		inner := strings.TrimSpace(raw[i+2 : end])
		if isPropertyName(inner) {
			if v, ok := lookup(inner); ok {
				b.WriteString(v)
			}
		} else {
			b.WriteString(raw[i : end+1])
		}
		i = end + 1
	}
	return b.String()
}

// matchParen returns the index of the ')' closing the '(' at open, or -1.
// Parentheses inside single-quoted or backtick strings do not count.
func matchParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '`', '"':
			if depth > 0 && i > open {
				quote = c
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// isPropertyName reports whether s is a plain MSBuild property identifier.
func isPropertyName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '-'):
		default:
			return false
		}
	}
	return true
}

// unescapeValue decodes MSBuild %XX escapes. Malformed sequences are kept.
func unescapeValue(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// reserved property names, lower-cased. These are computed by the evaluator
// and cannot be assigned from markup.
var reservedNames = map[string]bool{
	"msbuildprojectdirectory":       true,
	"msbuildprojectfile":            true,
	"msbuildprojectname":            true,
	"msbuildprojectextension":       true,
	"msbuildprojectfullpath":        true,
	"msbuildthisfile":               true,
	"msbuildthisfiledirectory":      true,
	"msbuildthisfilename":           true,
	"msbuildthisfileextension":      true,
	"msbuildthisfilefullpath":       true,
	"msbuildprojectdirectorynoroot": true,
}

// IsReserved reports whether name is computed by the evaluator.
func IsReserved(name string) bool {
	return reservedNames[strings.ToLower(name)]
}

// reservedValue computes a reserved property for the project at projectPath
// while the evaluator is inside thisFile.
func reservedValue(name, projectPath, thisFile string) (string, bool) {
	projectDir := filepath.Dir(projectPath)
	thisDir := filepath.Dir(thisFile)
	switch strings.ToLower(name) {
	case "msbuildprojectdirectory":
		return projectDir, true
	case "msbuildprojectdirectorynoroot":
		return strings.TrimPrefix(projectDir, filepath.VolumeName(projectDir)+string(filepath.Separator)), true
	case "msbuildprojectfile":
		return filepath.Base(projectPath), true
	case "msbuildprojectname":
		return strings.TrimSuffix(filepath.Base(projectPath), filepath.Ext(projectPath)), true
	case "msbuildprojectextension":
		return filepath.Ext(projectPath), true
	case "msbuildprojectfullpath":
		return projectPath, true
	case "msbuildthisfile":
		return filepath.Base(thisFile), true
	case "msbuildthisfiledirectory":
		return thisDir + string(filepath.Separator), true
	case "msbuildthisfilename":
		return strings.TrimSuffix(filepath.Base(thisFile), filepath.Ext(thisFile)), true
	case "msbuildthisfileextension":
		return filepath.Ext(thisFile), true
	case "msbuildthisfilefullpath":
		return thisFile, true
	}
	return "", false
}

// toHostPath converts MSBuild's backslash separators to the host separator.
func toHostPath(p string) string {
	return filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
}
