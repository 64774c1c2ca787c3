package core

import (
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// ValueGroup is the subset of a property's owners that hold one normalized value.
type ValueGroup struct {
	Property string // name of the owning PropertyReference, used to look it up again
	Value    string // normalized value
	owners   map[string]*msbuild.Project
}

// Count is derived from the owner subset.
func (g *ValueGroup) Count() int { return len(g.owners) }

// Projects returns the owners holding this value, sorted by path.
func (g *ValueGroup) Projects() []*msbuild.Project { return sortedProjects(g.owners) }

// Has reports whether the project at path holds this value.
func (g *ValueGroup) Has(path string) bool {
	_, ok := g.owners[path]
	return ok
}

// PropertyReference is one property name and every project that defines it
// locally, partitioned by value.
type PropertyReference struct {
	Name   string
	owners map[string]*msbuild.Project
	values map[string]*ValueGroup
}

func newReference(name string) *PropertyReference {
	return &PropertyReference{
		Name:   name,
		owners: make(map[string]*msbuild.Project),
		values: make(map[string]*ValueGroup),
	}
}

// OwningCount is the size of the owner set. There is no stored counter.
func (r *PropertyReference) OwningCount() int { return len(r.owners) }

// Owners returns the owning projects sorted by path.
func (r *PropertyReference) Owners() []*msbuild.Project { return sortedProjects(r.owners) }

// Owns reports whether the project at path is an owner.
func (r *PropertyReference) Owns(path string) bool {
	_, ok := r.owners[path]
	return ok
}

// Values returns the value groups, largest first, ties by value.
func (r *PropertyReference) Values() []*ValueGroup {
	out := make([]*ValueGroup, 0, len(r.values))
	for _, g := range r.values {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count() != out[j].Count() {
			return out[i].Count() > out[j].Count()
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Value returns the group for a normalized value.
func (r *PropertyReference) Value(key string) (*ValueGroup, bool) {
	g, ok := r.values[key]
	return g, ok
}

// regroup rebuilds the value groups from the owner set. Owners that no longer
// hold a local definition are dropped.
func (r *PropertyReference) regroup() {
	r.values = make(map[string]*ValueGroup)
	for path, p := range r.owners {
		prop, ok := p.GetProperty(r.Name)
		if !ok || prop.Origin != types.OriginLocal {
			debug.LogIndex("%s: %s lost its local definition, dropping owner\n", r.Name, path)
			delete(r.owners, path)
			continue
		}
		key := NormalizeValue(p, r.Name, prop.EvaluatedValue)
		g, ok := r.values[key]
		if !ok {
			g = &ValueGroup{Property: r.Name, Value: key, owners: make(map[string]*msbuild.Project)}
			r.values[key] = g
		}
		g.owners[path] = p
	}
}

// AxisValue is one value of a build axis and the number of projects declaring it.
type AxisValue struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// ReferenceChange describes what RemoveOwners did to one reference.
type ReferenceChange struct {
	Property  string
	Removed   []string // paths no longer owning the property
	Remaining int      // owning count afterwards
	Deleted   bool     // the reference reached zero owners and was dropped
}

// PropertyIndex maps property names to their owning projects and value groups.
// Mutations are expected from one goroutine at a time; the lock only keeps a
// reader from seeing a half-built index.
type PropertyIndex struct {
	mu             sync.RWMutex
	refs           map[string]*PropertyReference // keyed by lower-cased name
	configurations []AxisValue
	platforms      []AxisValue
}

// NewPropertyIndex creates an empty index.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{refs: make(map[string]*PropertyReference)}
}

// Rebuild discards all state and repopulates it from projects. Pass one
// collects owners from every locally defined property; pass two groups each
// reference's owners by normalized value, which needs the complete owner set.
func (idx *PropertyIndex) Rebuild(projects []*msbuild.Project) {
	sorted := make([]*msbuild.Project, len(projects))
	copy(sorted, projects)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path() < sorted[j].Path() })

	refs := make(map[string]*PropertyReference)
	for _, p := range sorted {
		for _, prop := range p.LocalProperties() {
			key := strings.ToLower(prop.Name)
			ref, ok := refs[key]
			if !ok {
				ref = newReference(prop.Name)
				refs[key] = ref
			}
			ref.owners[p.Path()] = p
		}
	}
	for _, ref := range refs {
		ref.regroup()
	}

	configurations := aggregateAxis(sorted, types.ConfigurationAxis)
	platforms := aggregateAxis(sorted, types.PlatformAxis)

	idx.mu.Lock()
	idx.refs = refs
	idx.configurations = configurations
	idx.platforms = platforms
	idx.mu.Unlock()

	debug.LogIndex("rebuilt index: %d properties from %d projects\n", len(refs), len(sorted))
}

// aggregateAxis counts, per value, the projects whose conditions test axis
// against it. Projects that never test the axis contribute nothing.
func aggregateAxis(projects []*msbuild.Project, axis string) []AxisValue {
	counts := make(map[string]int)
	for _, p := range projects {
		for _, v := range p.ConditionedValues(axis) {
			counts[v]++
		}
	}
	out := make([]AxisValue, 0, len(counts))
	for v, n := range counts {
		out = append(out, AxisValue{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Get looks a reference up by name, case-insensitively.
func (idx *PropertyIndex) Get(name string) (*PropertyReference, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ref, ok := idx.refs[strings.ToLower(name)]
	return ref, ok
}

// Names returns every indexed property name, sorted case-insensitively.
func (idx *PropertyIndex) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.refs))
	for _, ref := range idx.refs {
		names = append(names, ref.Name)
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return names
}

func (idx *PropertyIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.refs)
}

// References returns every reference, most owners first, ties by name.
func (idx *PropertyIndex) References() []*PropertyReference {
	idx.mu.RLock()
	out := make([]*PropertyReference, 0, len(idx.refs))
	for _, ref := range idx.refs {
		out = append(out, ref)
	}
	idx.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OwningCount() != out[j].OwningCount() {
			return out[i].OwningCount() > out[j].OwningCount()
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// RemoveOwners drops projects from name's owner set and regroups the rest.
// The reference is deleted when no owner remains.
func (idx *PropertyIndex) RemoveOwners(name string, projects []*msbuild.Project) ReferenceChange {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	change := ReferenceChange{Property: name}
	key := strings.ToLower(name)
	ref, ok := idx.refs[key]
	if !ok {
		return change
	}
	change.Property = ref.Name

	for _, p := range projects {
		if _, owned := ref.owners[p.Path()]; owned {
			delete(ref.owners, p.Path())
			change.Removed = append(change.Removed, p.Path())
		}
	}
	sort.Strings(change.Removed)

	ref.regroup()
	change.Remaining = ref.OwningCount()
	if change.Remaining == 0 {
		delete(idx.refs, key)
		change.Deleted = true
	}
	debug.LogIndex("%s: removed %d owner(s), %d remain\n", ref.Name, len(change.Removed), change.Remaining)
	return change
}

// Regroup recomputes name's value groups from its owners' current values.
func (idx *PropertyIndex) Regroup(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := strings.ToLower(name)
	if ref, ok := idx.refs[key]; ok {
		ref.regroup()
		if ref.OwningCount() == 0 {
			delete(idx.refs, key)
		}
	}
}

// ConfigurationAxis returns how many projects declare each Configuration value.
func (idx *PropertyIndex) ConfigurationAxis() []AxisValue {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]AxisValue(nil), idx.configurations...)
}

// PlatformAxis returns how many projects declare each Platform value.
func (idx *PropertyIndex) PlatformAxis() []AxisValue {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]AxisValue(nil), idx.platforms...)
}

// CheckConsistency verifies that the value groups of every reference
// partition its owner set exactly.
func (idx *PropertyIndex) CheckConsistency() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var errs []error
	for _, ref := range idx.refs {
		grouped := 0
		seen := make(map[string]bool, len(ref.owners))
		for _, g := range ref.values {
			grouped += g.Count()
			for path := range g.owners {
				if _, owned := ref.owners[path]; !owned || seen[path] {
					grouped = -1
				}
				seen[path] = true
			}
			if grouped < 0 {
				break
			}
		}
		if grouped != ref.OwningCount() {
			errs = append(errs, msberrors.NewConsistencyError(ref.Name, ref.OwningCount(), grouped))
		}
	}
	return msberrors.NewMultiError(errs).ErrorOrNil()
}

func sortedProjects(m map[string]*msbuild.Project) []*msbuild.Project {
	out := make([]*msbuild.Project, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}
