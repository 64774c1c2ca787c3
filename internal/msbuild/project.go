package msbuild

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// Property is one evaluated property of a project.
type Property struct {
	Name             string
	EvaluatedValue   string
	UnevaluatedValue string
	Origin           types.Origin

	escaped     string           // expanded value before %XX decoding
	definitions []*etree.Element // active local definitions, last one wins
}

// ResolvedImport records one <Import> met during evaluation.
type ResolvedImport struct {
	Project string // attribute as written
	Path    string // resolved absolute path
	Found   bool
}

// Project is one project file evaluated under a global context.
type Project struct {
	collection *Collection
	doc        *document
	path       string
	kind       types.ProjectKind
	globals    types.GlobalContext

	props   map[string]*Property
	imports []ResolvedImport

	dirty   bool // markup changed and not yet persisted
	pending bool // global context changed and not yet re-evaluated
}

func newProject(c *Collection, d *document, globals types.GlobalContext) *Project {
	return &Project{
		collection: c,
		doc:        d,
		path:       d.path,
		kind:       types.KindFromPath(d.path),
		globals:    globals,
	}
}

// Path returns the absolute file path.
func (p *Project) Path() string { return p.path }

// Dir returns the directory holding the project file.
func (p *Project) Dir() string { return filepath.Dir(p.path) }

// Name returns the file name without directory.
func (p *Project) Name() string { return filepath.Base(p.path) }

func (p *Project) Kind() types.ProjectKind { return p.kind }

// Globals returns the context the project is (or will be) evaluated under.
func (p *Project) Globals() types.GlobalContext { return p.globals }

// Exists reports whether the file has been read from or written to disk.
func (p *Project) Exists() bool { return p.doc.exists }

func (p *Project) IsDirty() bool { return p.dirty }

// MarkDirty flags the project for the next save.
func (p *Project) MarkDirty() { p.dirty = true }

func (p *Project) IsPendingReevaluation() bool { return p.pending }

// Imports returns the imports met during the last evaluation, in order.
func (p *Project) Imports() []ResolvedImport {
	out := make([]ResolvedImport, len(p.imports))
	copy(out, p.imports)
	return out
}

func (p *Project) root() *etree.Element { return p.doc.doc.Root() }

// GetProperty looks name up the way $(name) expands: global, markup,
// reserved, then environment.
func (p *Project) GetProperty(name string) (Property, bool) {
	if prop, ok := p.props[strings.ToLower(name)]; ok {
		return *prop, true
	}
	if v, ok := reservedValue(name, p.path, p.path); ok {
		return Property{Name: name, EvaluatedValue: v, Origin: types.OriginReserved}, true
	}
	if v, ok := os.LookupEnv(name); ok {
		return Property{Name: name, EvaluatedValue: v, UnevaluatedValue: v, Origin: types.OriginEnvironment}, true
	}
	return Property{}, false
}

// Properties returns every property defined by markup or the global context,
// sorted by name.
func (p *Project) Properties() []Property {
	out := make([]Property, 0, len(p.props))
	for _, prop := range p.props {
		out = append(out, *prop)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// LocalProperties returns the properties whose winning definition is in the
// project's own markup.
func (p *Project) LocalProperties() []Property {
	all := p.Properties()
	out := all[:0]
	for _, prop := range all {
		if prop.Origin == types.OriginLocal {
			out = append(out, prop)
		}
	}
	return out
}

// Reevaluate recomputes every property from the markup and current globals.
func (p *Project) Reevaluate() error {
	return p.evaluate()
}

// ReevaluateIfPending re-evaluates only after SetGlobalProperty changed the context.
func (p *Project) ReevaluateIfPending() error {
	if !p.pending {
		return nil
	}
	return p.evaluate()
}

// SetGlobalProperty changes one global property. Evaluation is deferred
// until ReevaluateIfPending. Reports whether the value changed.
func (p *Project) SetGlobalProperty(name, value string) bool {
	if cur, ok := p.globals.Get(name); ok && cur == value {
		return false
	}
	p.globals = p.globals.With(name, value)
	p.pending = true
	return true
}

// SetGlobals replaces the whole context, deferring evaluation.
func (p *Project) SetGlobals(globals types.GlobalContext) {
	p.globals = globals
	p.pending = true
}

// SetProperty updates the winning local definition of name, or appends a new
// definition to the first unconditioned PropertyGroup, creating one if needed.
func (p *Project) SetProperty(name, value string) error {
	if IsReserved(name) {
		return fmt.Errorf("%s is a reserved property", name)
	}
	if el := p.winningDefinition(name); el != nil {
		el.SetText(value)
	} else {
		group := p.firstUnconditionedGroup()
		if group == nil {
			group = etree.NewElement("PropertyGroup")
			appendElement(p.root(), group)
		}
		el := etree.NewElement(name)
		el.SetText(value)
		appendElement(group, el)
	}
	p.dirty = true
	return p.evaluate()
}

// SetUnevaluatedValue overwrites the raw text of the existing local definition.
// Reports false when name has no local definition.
func (p *Project) SetUnevaluatedValue(name, value string) (bool, error) {
	el := p.winningDefinition(name)
	if el == nil {
		return false, nil
	}
	el.SetText(value)
	p.dirty = true
	return true, p.evaluate()
}

// RemoveProperty deletes the active local definitions of name. Definitions in
// inactive conditional branches are kept.
func (p *Project) RemoveProperty(name string) (bool, error) {
	prop, ok := p.props[strings.ToLower(name)]
	if !ok || len(prop.definitions) == 0 {
		return false, nil
	}
	for _, el := range prop.definitions {
		removeElement(el)
	}
	p.dirty = true
	debug.LogEval("%s: removed %d definition(s) of %s\n", p.path, len(prop.definitions), name)
	return true, p.evaluate()
}

func (p *Project) winningDefinition(name string) *etree.Element {
	prop, ok := p.props[strings.ToLower(name)]
	if !ok || len(prop.definitions) == 0 {
		return nil
	}
	return prop.definitions[len(prop.definitions)-1]
}

func (p *Project) firstUnconditionedGroup() *etree.Element {
	for _, el := range p.root().ChildElements() {
		if el.Tag == "PropertyGroup" && strings.TrimSpace(el.SelectAttrValue("Condition", "")) == "" {
			return el
		}
	}
	return nil
}

// Save writes the project to disk. Unless force is set, the write is skipped
// when the serialized bytes equal the content last read or written. Reports
// whether the file was written.
func (p *Project) Save(force bool) (bool, error) {
	data, err := p.doc.serialize()
	if err != nil {
		return false, msberrors.NewSaveError(p.path, err)
	}

	h := xxhash.Sum64(data)
	if !force && p.doc.exists && h == p.doc.hash {
		p.dirty = false
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return false, msberrors.NewSaveError(p.path, err)
	}
	mode := fs.FileMode(0644)
	if fi, err := os.Stat(p.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(p.path, data, mode); err != nil {
		return false, msberrors.NewSaveError(p.path, err)
	}

	p.doc.hash = h
	p.doc.exists = true
	p.dirty = false
	debug.LogRefactor("saved %s (%d bytes)\n", p.path, len(data))
	return true, nil
}

// Content returns the bytes Save would write.
func (p *Project) Content() ([]byte, error) {
	return p.doc.serialize()
}

// expand resolves $(Name) references against the last evaluation.
func (p *Project) expand(raw string) string {
	return unescapeValue(expandProperties(raw, func(name string) (string, bool) {
		if prop, ok := p.props[strings.ToLower(name)]; ok {
			return prop.escaped, true
		}
		if v, ok := reservedValue(name, p.path, p.path); ok {
			return v, true
		}
		return os.LookupEnv(name)
	}))
}
