package refactor

import (
	"github.com/standardbeagle/msbrefactor/internal/core"
	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// Move removes the local definition of name from every project that has one
// and, when value is not empty, writes name=value to the property sheet.
// Without a loaded sheet a move touches nothing and reports the failure.
func (e *Engine) Move(name, value string) Change {
	if value != "" && e.sheet == nil {
		return Change{Property: name, Failures: []error{errNoSheet}}
	}
	owners := e.localOwners(name)
	change := e.removeFrom(name, owners)
	if value != "" {
		if err := e.upsertSheet(name, value); err != nil {
			change.Failures = append(change.Failures, err)
		} else {
			change.SheetValue = value
		}
	}
	e.checkConsistency()
	debug.LogRefactor("move %s: %d removed, sheet=%q\n", name, len(change.Removed), change.SheetValue)
	return change
}

// Remove deletes the local definition of name from every project.
func (e *Engine) Remove(name string) Change {
	return e.Move(name, "")
}

// RemoveMany applies Remove to each name. A failure on one name does not
// stop the others.
func (e *Engine) RemoveMany(names []string) []Change {
	changes := make([]Change, 0, len(names))
	for _, name := range names {
		changes = append(changes, e.Remove(name))
	}
	return changes
}

// MoveValue removes the property from the projects of one value group only
// and writes that value to the sheet. Projects holding other values keep
// their definitions.
func (e *Engine) MoveValue(group *core.ValueGroup) Change {
	projects := group.Projects()
	if len(projects) == 0 {
		return Change{Property: group.Property}
	}

	// The group key is normalized, so the sheet gets the text as written.
	var raw string
	if prop, ok := projects[0].GetProperty(group.Property); ok {
		raw = prop.UnevaluatedValue
	}
	if raw != "" && e.sheet == nil {
		return Change{Property: group.Property, Failures: []error{errNoSheet}}
	}

	change := e.removeFrom(group.Property, projects)
	if raw != "" {
		if err := e.upsertSheet(group.Property, raw); err != nil {
			change.Failures = append(change.Failures, err)
		} else {
			change.SheetValue = raw
		}
	}
	e.checkConsistency()
	return change
}

// RemoveValue removes the property from the projects of one value group
// without touching the sheet.
func (e *Engine) RemoveValue(group *core.ValueGroup) Change {
	change := e.removeFrom(group.Property, group.Projects())
	e.checkConsistency()
	return change
}

// MoveValueAllConfigs deletes every definition of the group's property from
// the markup of the group's projects, in all conditional branches, then
// writes the value to the sheet and rebuilds the index.
func (e *Engine) MoveValueAllConfigs(group *core.ValueGroup) Change {
	projects := group.Projects()
	change := Change{Property: group.Property}
	if len(projects) == 0 {
		return change
	}

	var raw string
	if prop, ok := projects[0].GetProperty(group.Property); ok {
		raw = prop.UnevaluatedValue
	}
	if raw != "" && e.sheet == nil {
		change.Failures = append(change.Failures, errNoSheet)
		return change
	}

	for _, p := range projects {
		n, err := p.RemovePropertyElements([]string{group.Property})
		if err != nil {
			e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
			change.Failures = append(change.Failures, err)
		}
		if n > 0 {
			change.Removed = append(change.Removed, p.Path())
			change.Elements += n
		}
	}
	if raw != "" {
		if err := e.upsertSheet(group.Property, raw); err != nil {
			change.Failures = append(change.Failures, err)
		} else {
			change.SheetValue = raw
		}
	}

	e.rebuild()
	e.fillRemaining(&change)
	return change
}

// RemoveXml deletes every definition of each name from the markup of every
// project, in all conditional branches, pruning groups left empty.
func (e *Engine) RemoveXml(names []string) []Change {
	changes := make([]Change, 0, len(names))
	targets := e.targets()
	for _, name := range names {
		change := Change{Property: name}
		for _, p := range targets {
			n, err := p.RemovePropertyElements([]string{name})
			if err != nil {
				e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
				change.Failures = append(change.Failures, err)
			}
			if n > 0 {
				change.Removed = append(change.Removed, p.Path())
				change.Elements += n
			}
		}
		changes = append(changes, change)
	}

	e.rebuild()
	for i := range changes {
		e.fillRemaining(&changes[i])
	}
	return changes
}

// RemoveEmptyXMLElements strips empty properties and containers from every
// project, saves the ones that changed and rebuilds the index.
func (e *Engine) RemoveEmptyXMLElements() CleanupResult {
	result := CleanupResult{Removed: make(map[string]int)}
	var changed []*msbuild.Project
	for _, p := range e.targets() {
		n, err := p.RemoveEmptyElements()
		if err != nil {
			e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
			result.Failures = append(result.Failures, err)
		}
		if n > 0 {
			result.Removed[p.Path()] = n
			result.Elements += n
			changed = append(changed, p)
		}
	}

	result.Save = e.saveProjects(changed, false)
	result.Failures = append(result.Failures, e.reevaluateAll()...)
	e.rebuild()
	e.logger.Info("removed empty elements", "projects", len(changed), "elements", result.Elements)
	return result
}

// SetGlobalProperty switches one global property for every project and the
// sheet, re-evaluates them and rebuilds the index. The markup is unchanged,
// so no project is marked dirty and SaveAll writes nothing for the switch.
func (e *Engine) SetGlobalProperty(name, value string) GlobalChange {
	old, _ := e.globals.Get(name)
	change := GlobalChange{Name: name, Old: old, New: value}
	if e.globals.Has(name) && old == value {
		return change
	}
	change.Changed = true
	e.globals = e.globals.With(name, value)

	all := e.projects
	if e.sheet != nil && !containsProject(all, e.sheet) {
		all = append(append([]*msbuild.Project(nil), all...), e.sheet)
	}
	for _, p := range all {
		p.SetGlobalProperty(name, value)
		if err := p.ReevaluateIfPending(); err != nil {
			e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
			change.Failures = append(change.Failures, err)
			continue
		}
		change.Projects++
	}

	e.rebuild()
	e.logger.Info("global property changed", "name", name, "old", old, "new", value)
	return change
}

// RemovePropertiesFromProjects removes from every project the local
// definitions, under the active context, of each property the sheet defines.
func (e *Engine) RemovePropertiesFromProjects() []Change {
	return e.RemoveMany(e.sheetPropertyNames())
}

// RemoveAllPropertiesFromProjects removes from every project each property
// the sheet defines, in all conditional branches.
func (e *Engine) RemoveAllPropertiesFromProjects() []Change {
	return e.RemoveXml(e.sheetPropertyNames())
}

func (e *Engine) sheetPropertyNames() []string {
	var names []string
	for _, prop := range e.SheetProperties() {
		// Global keys are owned by the context, not by the sheet.
		if e.globals.Has(prop.Name) {
			continue
		}
		names = append(names, prop.Name)
	}
	return names
}

// localOwners returns the target projects whose own markup defines name.
func (e *Engine) localOwners(name string) []*msbuild.Project {
	var out []*msbuild.Project
	for _, p := range e.targets() {
		if prop, ok := p.GetProperty(name); ok && prop.Origin == types.OriginLocal {
			out = append(out, p)
		}
	}
	return out
}

// removeFrom deletes the active local definitions of name from projects and
// drops them from the reference's owner set.
func (e *Engine) removeFrom(name string, projects []*msbuild.Project) Change {
	change := Change{Property: name}
	var affected []*msbuild.Project
	for _, p := range projects {
		removed, err := p.RemoveProperty(name)
		if err != nil {
			e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
			change.Failures = append(change.Failures, err)
		}
		if removed {
			affected = append(affected, p)
		}
	}

	ref := e.index.RemoveOwners(name, affected)
	if ref.Property != "" {
		change.Property = ref.Property
	}
	change.Removed = ref.Removed
	change.Remaining = ref.Remaining
	change.ReferenceDeleted = ref.Deleted
	return change
}

// upsertSheet creates name in the sheet or overwrites its raw value.
func (e *Engine) upsertSheet(name, value string) error {
	if e.sheet == nil {
		return errNoSheet
	}
	updated, err := e.sheet.SetUnevaluatedValue(name, value)
	if err != nil || updated {
		return err
	}
	return e.sheet.SetProperty(name, value)
}

func (e *Engine) fillRemaining(change *Change) {
	ref, ok := e.index.Get(change.Property)
	if !ok {
		change.ReferenceDeleted = len(change.Removed) > 0
		return
	}
	change.Remaining = ref.OwningCount()
}

func containsProject(projects []*msbuild.Project, p *msbuild.Project) bool {
	for _, q := range projects {
		if q == p {
			return true
		}
	}
	return false
}
