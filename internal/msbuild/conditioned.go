package msbuild

import (
	"strings"

	"github.com/beevik/etree"
)

// ConditionedValues returns, in document order and without case-insensitive
// duplicates, every literal value axis is compared against in any condition
// of the file, such as 'Release' and 'x86' in
// '$(Configuration)|$(Platform)' == 'Release|x86'. The active context plays
// no part. A file that never tests axis yields nil.
func (p *Project) ConditionedValues(axis string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(values []string) {
		for _, v := range values {
			k := strings.ToLower(v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
	}

	walkElements(p.root(), func(el *etree.Element) bool {
		raw := el.SelectAttrValue("Condition", "")
		if strings.TrimSpace(raw) == "" {
			return true
		}
		cond, err := ParseCondition(raw)
		if err != nil {
			return true
		}
		for _, cmp := range cond.Comparisons() {
			add(axisLiterals(axis, cmp.Left, cmp.Right))
			add(axisLiterals(axis, cmp.Right, cmp.Left))
		}
		return true
	})
	return out
}

// axisLiterals pairs the '|' separated parts of refs and literals and returns
// the literal at each position where refs holds $(axis).
func axisLiterals(axis, refs, literals string) []string {
	refParts := strings.Split(refs, "|")
	litParts := strings.Split(literals, "|")
	if len(refParts) != len(litParts) {
		return nil
	}
	want := "$(" + strings.ToLower(axis) + ")"
	var out []string
	for i, r := range refParts {
		if strings.ToLower(strings.ReplaceAll(r, " ", "")) != want {
			continue
		}
		v := strings.TrimSpace(litParts[i])
		if v == "" || strings.Contains(v, "$(") {
			continue
		}
		out = append(out, v)
	}
	return out
}
