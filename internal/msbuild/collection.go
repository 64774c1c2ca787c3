package msbuild

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"

	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// document is one parsed file shared by every project that loads or imports it.
type document struct {
	path   string
	doc    *etree.Document
	bom    bool
	crlf   bool
	hash   uint64 // xxhash of the bytes last read from or written to disk
	exists bool
}

func readDocument(path string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDocument(path, raw)
}

func parseDocument(path string, raw []byte) (*document, error) {
	d := &document{path: path, hash: xxhash.Sum64(raw), exists: true}

	data := raw
	if bytes.HasPrefix(data, utf8BOM) {
		d.bom = true
		data = data[len(utf8BOM):]
	}
	d.crlf = bytes.Contains(data, []byte("\r\n"))

	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	if root.Tag != "Project" {
		return nil, fmt.Errorf("root element is <%s>, expected <Project>", root.Tag)
	}
	configureWriter(doc)
	d.doc = doc
	return d, nil
}

// newEmptyDocument builds an in-memory project file that does not exist on disk yet.
func newEmptyDocument(path string) *document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.CreateText("\n")
	root := doc.CreateElement("Project")
	root.CreateAttr("ToolsVersion", types.DefaultToolsVersion)
	root.CreateAttr("xmlns", types.MSBuildNamespace)
	doc.CreateText("\n")
	configureWriter(doc)
	return &document{path: path, doc: doc}
}

func configureWriter(doc *etree.Document) {
	// Only escape what XML requires so untouched text and conditions round-trip
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
}

// serialize renders the document with the original BOM and line endings.
func (d *document) serialize() ([]byte, error) {
	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	if d.crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	if d.bom {
		out = append(append(make([]byte, 0, len(out)+len(utf8BOM)), utf8BOM...), out...)
	}
	return out, nil
}

// Collection is the registry of parsed documents shared by projects and
// their imports, so an in-memory edit to one file is visible to every
// project importing it.
type Collection struct {
	mu   sync.Mutex
	docs map[string]*document
}

// NewCollection creates an empty registry.
func NewCollection() *Collection {
	return &Collection{docs: make(map[string]*document)}
}

func docKey(path string) string {
	return filepath.Clean(path)
}

// Load parses and evaluates the project at path under globals. Any failure is
// returned as a *errors.ParseError.
func (c *Collection) Load(path string, globals types.GlobalContext) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, msberrors.NewParseError(path, err)
	}

	d, err := readDocument(abs)
	if err != nil {
		return nil, msberrors.NewParseError(abs, err)
	}
	c.store(d)

	p := newProject(c, d, globals)
	if err := p.evaluate(); err != nil {
		return nil, msberrors.NewParseError(abs, err)
	}
	return p, nil
}

// LoadOrCreate behaves like Load, except that a missing file yields an empty
// in-memory project marked dirty. It is written on the first save.
func (c *Collection) LoadOrCreate(path string, globals types.GlobalContext) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, msberrors.NewParseError(path, err)
	}

	if _, err := os.Stat(abs); err == nil {
		return c.Load(abs, globals)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, msberrors.NewParseError(abs, err)
	}

	d := newEmptyDocument(abs)
	c.store(d)
	p := newProject(c, d, globals)
	p.dirty = true
	if err := p.evaluate(); err != nil {
		return nil, msberrors.NewParseError(abs, err)
	}
	return p, nil
}

// Register makes p's document the one imports of its path resolve to.
func (c *Collection) Register(p *Project) {
	c.store(p.doc)
}

// UnloadAll forgets every cached document.
func (c *Collection) UnloadAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]*document)
}

// Len returns the number of cached documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) store(d *document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[docKey(d.path)] = d
}

// document returns the cached document for path, reading it on first use.
func (c *Collection) document(path string) (*document, error) {
	k := docKey(path)

	c.mu.Lock()
	d, ok := c.docs[k]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := readDocument(k)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.docs[k]; ok {
		return existing, nil
	}
	c.docs[k] = d
	return d, nil
}
