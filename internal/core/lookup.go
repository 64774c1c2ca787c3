package core

import (
	"fmt"
	"strings"
)

// MaxLookupSuggestions caps the names offered by an UnknownPropertyError.
const MaxLookupSuggestions = 5

// UnknownPropertyError reports a property no project defines locally,
// together with the closest indexed names.
type UnknownPropertyError struct {
	Name        string
	Suggestions []Suggestion
}

func (e *UnknownPropertyError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("property %q is not defined by any project", e.Name)
	}
	names := make([]string, len(e.Suggestions))
	for i, s := range e.Suggestions {
		names[i] = s.Name
	}
	return fmt.Sprintf("property %q is not defined by any project; did you mean %s?",
		e.Name, strings.Join(names, ", "))
}

// UnknownValueError reports a value none of a property's owners hold.
type UnknownValueError struct {
	Property string
	Value    string
	Known    []string
}

func (e *UnknownValueError) Error() string {
	quoted := make([]string, len(e.Known))
	for i, v := range e.Known {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%s has no value %q (values: %s)", e.Property, e.Value, strings.Join(quoted, ", "))
}

// Lookup is Get with an *UnknownPropertyError for names not in the index.
func (idx *PropertyIndex) Lookup(name string) (*PropertyReference, error) {
	if ref, ok := idx.Get(name); ok {
		return ref, nil
	}
	return nil, &UnknownPropertyError{Name: name, Suggestions: idx.Suggest(name, MaxLookupSuggestions)}
}

// FindValue matches value against the value groups. The lower-cased text is
// tried first, then the value as each owner would normalize it, so a path
// can be given the way any of the owning projects spells it.
func (r *PropertyReference) FindValue(value string) (*ValueGroup, error) {
	if g, ok := r.Value(strings.ToLower(value)); ok {
		return g, nil
	}
	for _, p := range r.Owners() {
		if g, ok := r.Value(NormalizeValue(p, r.Name, value)); ok {
			return g, nil
		}
	}
	groups := r.Values()
	known := make([]string, len(groups))
	for i, g := range groups {
		known[i] = g.Value
	}
	return nil, &UnknownValueError{Property: r.Name, Value: value, Known: known}
}
