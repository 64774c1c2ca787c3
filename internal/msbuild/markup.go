package msbuild

import (
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Raw markup operations. These bypass evaluation and see every conditional
// branch of the file.

// containers may be pruned when they end up with no child elements.
var containers = map[string]bool{
	"PropertyGroup":       true,
	"ImportGroup":         true,
	"ItemGroup":           true,
	"ItemDefinitionGroup": true,
}

// RemovePropertyElements deletes every property element named in names from
// every evaluation-level PropertyGroup, whatever its condition, then prunes
// groups left empty. Returns the number of property elements removed.
func (p *Project) RemovePropertyElements(names []string) (int, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	removed := 0
	for _, group := range p.propertyGroups() {
		n := 0
		for _, child := range group.ChildElements() {
			if want[strings.ToLower(child.Tag)] {
				removeElement(child)
				n++
			}
		}
		if n > 0 && len(group.ChildElements()) == 0 {
			p.pruneEmpty(group)
		}
		removed += n
	}

	if removed == 0 {
		return 0, nil
	}
	p.dirty = true
	return removed, p.evaluate()
}

// RemoveEmptyElements deletes empty property elements, empty metadata inside
// item definitions, and the PropertyGroup, ImportGroup, ItemGroup and
// ItemDefinitionGroup elements left without children. Returns the number of
// elements removed.
func (p *Project) RemoveEmptyElements() (int, error) {
	removed := 0
	var sweep func(parent *etree.Element)
	sweep = func(parent *etree.Element) {
		for _, el := range parent.ChildElements() {
			switch el.Tag {
			case "PropertyGroup":
				for _, prop := range el.ChildElements() {
					if isEmptyElement(prop) {
						removeElement(prop)
						removed++
					}
				}
			case "ItemDefinitionGroup":
				for _, def := range el.ChildElements() {
					for _, meta := range def.ChildElements() {
						if isEmptyElement(meta) {
							removeElement(meta)
							removed++
						}
					}
					if len(def.ChildElements()) == 0 && len(def.Attr) == 0 {
						removeElement(def)
						removed++
					}
				}
			case "Choose":
				for _, branch := range el.ChildElements() {
					sweep(branch)
				}
				continue
			}
			if containers[el.Tag] && len(el.ChildElements()) == 0 {
				removeElement(el)
				removed++
			}
		}
	}
	sweep(p.root())

	if removed == 0 {
		return 0, nil
	}
	p.dirty = true
	return removed, p.evaluate()
}

// HasImportOf reports whether any <Import> in the file references a file named
// fileName. Only the file name is compared, case-insensitively.
func (p *Project) HasImportOf(fileName string) bool {
	want := importBaseName(fileName)
	found := false
	walkElements(p.root(), func(el *etree.Element) bool {
		if el.Tag != "Import" {
			return true
		}
		raw := el.SelectAttrValue("Project", "")
		if strings.EqualFold(importBaseName(raw), want) ||
			strings.EqualFold(importBaseName(p.expand(raw)), want) {
			found = true
			return false
		}
		return true
	})
	return found
}

// InsertImportFirst inserts <Import Project="projectAttr" /> as the first
// child element of the root.
func (p *Project) InsertImportFirst(projectAttr string) error {
	imp := etree.NewElement("Import")
	imp.CreateAttr("Project", projectAttr)

	root := p.root()
	if kids := root.ChildElements(); len(kids) > 0 {
		insertBefore(root, imp, kids[0])
	} else {
		appendElement(root, imp)
	}
	p.dirty = true
	return p.evaluate()
}

func importBaseName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, "/"))
	if s == "" {
		return ""
	}
	return path.Base(s)
}

// propertyGroups returns evaluation-level PropertyGroups, including those
// nested in Choose/When/Otherwise, in document order.
func (p *Project) propertyGroups() []*etree.Element {
	var out []*etree.Element
	var collect func(parent *etree.Element)
	collect = func(parent *etree.Element) {
		for _, el := range parent.ChildElements() {
			switch el.Tag {
			case "PropertyGroup":
				out = append(out, el)
			case "Choose":
				for _, branch := range el.ChildElements() {
					collect(branch)
				}
			}
		}
	}
	collect(p.root())
	return out
}

// pruneEmpty removes el and then its parent when the parent is a container
// left without child elements. The root is never removed.
func (p *Project) pruneEmpty(el *etree.Element) {
	parent := el.Parent()
	removeElement(el)
	if parent != nil && parent != p.root() && containers[parent.Tag] && len(parent.ChildElements()) == 0 {
		removeElement(parent)
	}
}

func isEmptyElement(el *etree.Element) bool {
	return len(el.ChildElements()) == 0 && strings.TrimSpace(el.Text()) == ""
}

// walkElements visits every descendant of root depth-first until visit returns false.
func walkElements(root *etree.Element, visit func(*etree.Element) bool) bool {
	for _, el := range root.ChildElements() {
		if !visit(el) {
			return false
		}
		if !walkElements(el, visit) {
			return false
		}
	}
	return true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// precedingWhitespace returns the whitespace token right before el, if any.
func precedingWhitespace(el *etree.Element) *etree.CharData {
	parent := el.Parent()
	idx := el.Index()
	if parent == nil || idx <= 0 {
		return nil
	}
	if cd, ok := parent.Child[idx-1].(*etree.CharData); ok && isBlank(cd.Data) {
		return cd
	}
	return nil
}

// lineIndent is the indentation of the line el starts on.
func lineIndent(el *etree.Element) string {
	cd := precedingWhitespace(el)
	if cd == nil {
		return ""
	}
	if i := strings.LastIndexByte(cd.Data, '\n'); i >= 0 {
		return cd.Data[i+1:]
	}
	return ""
}

// indentUnit is the indentation of the root's first child, defaulting to two spaces.
func indentUnit(el *etree.Element) string {
	root := el
	for root.Parent() != nil && root.Parent().Tag != "" {
		root = root.Parent()
	}
	for _, kid := range root.ChildElements() {
		if u := lineIndent(kid); u != "" {
			return u
		}
	}
	return "  "
}

func childIndent(parent *etree.Element) string {
	if kids := parent.ChildElements(); len(kids) > 0 {
		if precedingWhitespace(kids[len(kids)-1]) != nil {
			return "\n" + lineIndent(kids[len(kids)-1])
		}
	}
	return "\n" + lineIndent(parent) + indentUnit(parent)
}

// appendElement adds child as the last element of parent, on its own
// indented line.
func appendElement(parent, child *etree.Element) {
	ws := childIndent(parent)
	n := len(parent.Child)
	if n > 0 {
		if cd, ok := parent.Child[n-1].(*etree.CharData); ok && isBlank(cd.Data) {
			parent.InsertChildAt(n-1, child)
			parent.InsertChildAt(n-1, etree.NewText(ws))
			return
		}
	}
	parent.AddChild(etree.NewText(ws))
	parent.AddChild(child)
	parent.AddChild(etree.NewText("\n" + lineIndent(parent)))
}

// insertBefore places child directly before sibling, repeating sibling's indentation.
func insertBefore(parent, child, sibling *etree.Element) {
	idx := sibling.Index()
	if ws := precedingWhitespace(sibling); ws != nil {
		parent.InsertChildAt(idx, etree.NewText("\n"+lineIndent(sibling)))
		parent.InsertChildAt(idx, child)
		return
	}
	parent.InsertChildAt(idx, child)
}

// removeElement detaches el together with the whitespace before it.
func removeElement(el *etree.Element) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	ws := precedingWhitespace(el)
	parent.RemoveChild(el)
	if ws != nil {
		parent.RemoveChild(ws)
	}
}
