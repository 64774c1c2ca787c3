package msbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// evaluator walks a project's markup in document order, following imports,
// and records the winning definition of every property.
type evaluator struct {
	project  *Project
	globals  types.GlobalContext
	props    map[string]*Property
	imports  []ResolvedImport
	seen     map[string]bool // files already evaluated; guards cycles and duplicate imports
	thisFile string
}

func (p *Project) evaluate() error {
	ev := &evaluator{
		project:  p,
		globals:  p.globals,
		props:    make(map[string]*Property),
		seen:     map[string]bool{docKey(p.path): true},
		thisFile: p.path,
	}
	for _, g := range p.globals.Properties() {
		ev.props[strings.ToLower(g.Name)] = &Property{
			Name:             g.Name,
			EvaluatedValue:   g.Value,
			UnevaluatedValue: g.Value,
			Origin:           types.OriginGlobal,
			escaped:          g.Value,
		}
	}

	if err := ev.walk(p.root(), true); err != nil {
		return err
	}

	p.props = ev.props
	p.imports = ev.imports
	p.pending = false
	return nil
}

func (ev *evaluator) walk(parent *etree.Element, local bool) error {
	for _, el := range parent.ChildElements() {
		switch el.Tag {
		case "PropertyGroup":
			ok, err := ev.condition(el)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for _, child := range el.ChildElements() {
				ok, err := ev.condition(child)
				if err != nil {
					return err
				}
				if ok {
					ev.assign(child, local)
				}
			}
		case "Import":
			ok, err := ev.condition(el)
			if err != nil {
				return err
			}
			if ok {
				if err := ev.importProject(el); err != nil {
					return err
				}
			}
		case "ImportGroup":
			ok, err := ev.condition(el)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for _, child := range el.ChildElements() {
				if child.Tag != "Import" {
					continue
				}
				ok, err := ev.condition(child)
				if err != nil {
					return err
				}
				if ok {
					if err := ev.importProject(child); err != nil {
						return err
					}
				}
			}
		case "Choose":
			if err := ev.choose(el, local); err != nil {
				return err
			}
		}
		// ItemGroup, ItemDefinitionGroup, Target, UsingTask and ProjectExtensions
		// do not contribute properties.
	}
	return nil
}

// choose evaluates the first When whose condition holds, else Otherwise.
func (ev *evaluator) choose(el *etree.Element, local bool) error {
	for _, branch := range el.ChildElements() {
		switch branch.Tag {
		case "When":
			ok, err := ev.condition(branch)
			if err != nil {
				return err
			}
			if ok {
				return ev.walk(branch, local)
			}
		case "Otherwise":
			return ev.walk(branch, local)
		}
	}
	return nil
}

func (ev *evaluator) condition(el *etree.Element) (bool, error) {
	raw := el.SelectAttrValue("Condition", "")
	if strings.TrimSpace(raw) == "" {
		return true, nil
	}
	cond, err := ParseCondition(raw)
	if err != nil {
		return false, fmt.Errorf("%s: <%s Condition=%q>: %w", ev.thisFile, el.Tag, raw, err)
	}
	ok, err := cond.Eval(ev)
	if err != nil {
		return false, fmt.Errorf("%s: <%s Condition=%q>: %w", ev.thisFile, el.Tag, raw, err)
	}
	return ok, nil
}

func (ev *evaluator) assign(el *etree.Element, local bool) {
	name := el.Tag
	if IsReserved(name) {
		debug.LogEval("%s: ignoring assignment to reserved property %s\n", ev.thisFile, name)
		return
	}

	raw := el.Text()
	key := strings.ToLower(name)

	// Markup cannot override a global property; a local assignment still
	// makes the project an owner of it.
	if ev.globals.Has(name) {
		if local {
			prop := ev.props[key]
			prop.Origin = types.OriginLocal
			prop.UnevaluatedValue = raw
			prop.definitions = append(prop.definitions, el)
		}
		return
	}

	escaped := strings.TrimSpace(ev.expand(raw))
	origin := types.OriginImported
	var defs []*etree.Element
	if local {
		origin = types.OriginLocal
		if prev, ok := ev.props[key]; ok && prev.Origin == types.OriginLocal {
			defs = prev.definitions
		}
		defs = append(defs, el)
	}

	ev.props[key] = &Property{
		Name:             name,
		EvaluatedValue:   unescapeValue(escaped),
		UnevaluatedValue: raw,
		Origin:           origin,
		escaped:          escaped,
		definitions:      defs,
	}
}

func (ev *evaluator) importProject(el *etree.Element) error {
	raw := el.SelectAttrValue("Project", "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	target := ev.resolvePath(strings.TrimSpace(unescapeValue(ev.expand(raw))))

	if !strings.ContainsAny(target, "*?[") {
		return ev.importOne(raw, target)
	}

	matches, err := doublestar.FilepathGlob(target)
	if err != nil {
		debug.LogEval("%s: bad import pattern %q: %v\n", ev.thisFile, raw, err)
		ev.imports = append(ev.imports, ResolvedImport{Project: raw, Path: target})
		return nil
	}
	sort.Strings(matches)
	for _, m := range matches {
		if err := ev.importOne(raw, m); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) importOne(raw, path string) error {
	ri := ResolvedImport{Project: raw, Path: path}
	k := docKey(path)
	if ev.seen[k] {
		debug.LogEval("%s: skipping duplicate or cyclic import of %s\n", ev.thisFile, path)
		ev.imports = append(ev.imports, ri)
		return nil
	}

	d, err := ev.project.collection.document(path)
	if err != nil {
		debug.LogEval("%s: import %s not loaded: %v\n", ev.thisFile, path, err)
		ev.imports = append(ev.imports, ri)
		return nil
	}
	ri.Found = true
	ev.imports = append(ev.imports, ri)
	ev.seen[k] = true

	prev := ev.thisFile
	ev.thisFile = path
	defer func() { ev.thisFile = prev }()
	return ev.walk(d.doc.Root(), false)
}

// resolvePath makes p absolute relative to the file being evaluated.
func (ev *evaluator) resolvePath(p string) string {
	hp := toHostPath(p)
	if !filepath.IsAbs(hp) {
		hp = filepath.Join(filepath.Dir(ev.thisFile), hp)
	}
	return filepath.Clean(hp)
}

func (ev *evaluator) lookup(name string) (string, bool) {
	if v, ok := ev.globals.Get(name); ok {
		return v, true
	}
	if prop, ok := ev.props[strings.ToLower(name)]; ok {
		return prop.escaped, true
	}
	if v, ok := reservedValue(name, ev.project.path, ev.thisFile); ok {
		return v, true
	}
	return os.LookupEnv(name)
}

func (ev *evaluator) expand(raw string) string {
	return expandProperties(raw, ev.lookup)
}

func (ev *evaluator) exists(path string) bool {
	_, err := os.Stat(ev.resolvePath(path))
	return err == nil
}
