package types

import (
	"fmt"
	"sort"
	"strings"
)

// GlobalProperty is one key/value pair of a GlobalContext.
type GlobalProperty struct {
	Name  string
	Value string
}

// GlobalContext is the ordered set of global properties applied uniformly to
// every project evaluation. Keys are case-insensitive. The zero value is an
// empty context. GlobalContext is immutable; With returns a modified copy.
type GlobalContext struct {
	props []GlobalProperty
}

// NewGlobalContext creates a context holding Configuration and Platform.
func NewGlobalContext(configuration, platform string) GlobalContext {
	return GlobalContext{}.
		With(ConfigurationAxis, configuration).
		With(PlatformAxis, platform)
}

// GlobalContextFromMap builds a context from a map. Configuration and Platform
// come first; remaining keys follow in sorted order.
func GlobalContextFromMap(m map[string]string) GlobalContext {
	var g GlobalContext
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := axisRank(keys[i]), axisRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		g = g.With(k, m[k])
	}
	return g
}

func axisRank(name string) int {
	switch {
	case strings.EqualFold(name, ConfigurationAxis):
		return 0
	case strings.EqualFold(name, PlatformAxis):
		return 1
	default:
		return 2
	}
}

// Get returns the value for name.
func (g GlobalContext) Get(name string) (string, bool) {
	for _, p := range g.props {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Has reports whether name is a global property.
func (g GlobalContext) Has(name string) bool {
	_, ok := g.Get(name)
	return ok
}

// With returns a copy of g where name is set to value. An existing key keeps
// its position and original spelling.
func (g GlobalContext) With(name, value string) GlobalContext {
	out := make([]GlobalProperty, len(g.props), len(g.props)+1)
	copy(out, g.props)
	for i := range out {
		if strings.EqualFold(out[i].Name, name) {
			out[i].Value = value
			return GlobalContext{props: out}
		}
	}
	return GlobalContext{props: append(out, GlobalProperty{Name: name, Value: value})}
}

// Properties returns the ordered pairs.
func (g GlobalContext) Properties() []GlobalProperty {
	out := make([]GlobalProperty, len(g.props))
	copy(out, g.props)
	return out
}

// Map returns the context as a map keyed by the original spelling.
func (g GlobalContext) Map() map[string]string {
	m := make(map[string]string, len(g.props))
	for _, p := range g.props {
		m[p.Name] = p.Value
	}
	return m
}

// Len returns the number of global properties.
func (g GlobalContext) Len() int {
	return len(g.props)
}

func (g GlobalContext) String() string {
	parts := make([]string, len(g.props))
	for i, p := range g.props {
		parts[i] = fmt.Sprintf("%s=%s", p.Name, p.Value)
	}
	return strings.Join(parts, ";")
}
