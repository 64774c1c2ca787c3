package refactor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/standardbeagle/msbrefactor/internal/core"
	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/indexing"
	"github.com/standardbeagle/msbrefactor/internal/logging"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// Options configures an Engine.
type Options struct {
	Globals        types.GlobalContext // initial context; Configuration/Platform default to Debug/AnyCPU
	Extensions     []string
	Ignore         []string // case-insensitive path substrings
	Include        []string // doublestar globs relative to the root
	Exclude        []string // doublestar globs relative to the root
	FollowSymlinks bool
	MaxFileSizeKB  int64 // 0 = no limit
	Workers        int   // parallel loads and saves; 0 = NumCPU
	Logger         *slog.Logger
}

// Engine owns the loaded project set, the property sheet, the global context
// and the property index, and keeps them consistent through every operation.
// Calls are expected to be made from one goroutine at a time.
type Engine struct {
	opts       Options
	logger     *slog.Logger
	globals    types.GlobalContext
	collection *msbuild.Collection
	scanner    *indexing.FileScanner
	index      *core.PropertyIndex

	root       string
	projects   []*msbuild.Project
	sheet      *msbuild.Project
	discovered int
	loaded     int
}

// New creates an engine with no projects loaded.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	globals := opts.Globals
	if !globals.Has(types.ConfigurationAxis) {
		globals = globals.With(types.ConfigurationAxis, types.DefaultConfiguration)
	}
	if !globals.Has(types.PlatformAxis) {
		globals = globals.With(types.PlatformAxis, types.DefaultPlatform)
	}

	return &Engine{
		opts:       opts,
		logger:     opts.Logger,
		globals:    globals,
		collection: msbuild.NewCollection(),
		scanner: indexing.NewFileScanner(indexing.ScanOptions{
			Extensions:     opts.Extensions,
			Ignore:         opts.Ignore,
			Include:        opts.Include,
			Exclude:        opts.Exclude,
			FollowSymlinks: opts.FollowSymlinks,
			MaxFileSizeKB:  opts.MaxFileSizeKB,
			Workers:        opts.Workers,
			Logger:         opts.Logger,
		}),
		index: core.NewPropertyIndex(),
	}
}

// LoadDirectory discards the current project set, scans root and rebuilds
// the index. A loaded property sheet is kept, unsaved edits included.
func (e *Engine) LoadDirectory(ctx context.Context, root string) (*indexing.ScanResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	e.collection.UnloadAll()
	e.collection = msbuild.NewCollection()
	if e.sheet != nil {
		e.collection.Register(e.sheet)
	}
	e.projects = nil
	e.discovered, e.loaded = 0, 0

	result, err := e.scanner.Scan(ctx, abs, e.globals, e.collection)
	if err != nil {
		e.index.Rebuild(nil)
		return nil, err
	}

	e.root = abs
	e.projects = result.Projects
	e.discovered = result.Discovered
	e.loaded = result.Loaded
	e.rebuild()
	return result, nil
}

// LoadPropertySheet loads the shared sheet, or starts an empty one in memory
// when the file does not exist yet. Reports whether it was created.
func (e *Engine) LoadPropertySheet(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	sheet, err := e.collection.LoadOrCreate(abs, e.globals)
	if err != nil {
		return false, err
	}
	created := !sheet.Exists()
	if created {
		e.logger.Warn("property sheet does not exist yet, it will be created on save", "path", abs)
	}
	e.sheet = sheet
	debug.LogRefactor("property sheet %s (created=%v)\n", abs, created)
	return created, nil
}

// Projects returns the loaded projects sorted by path.
func (e *Engine) Projects() []*msbuild.Project {
	return append([]*msbuild.Project(nil), e.projects...)
}

// Project finds a loaded project by path.
func (e *Engine) Project(path string) (*msbuild.Project, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	for _, p := range e.projects {
		if p.Path() == abs {
			return p, true
		}
	}
	return nil, false
}

func (e *Engine) Index() *core.PropertyIndex { return e.index }

// Sheet returns the property sheet, or nil before LoadPropertySheet.
func (e *Engine) Sheet() *msbuild.Project { return e.sheet }

func (e *Engine) Globals() types.GlobalContext { return e.globals }

// Root returns the directory of the last successful scan.
func (e *Engine) Root() string { return e.root }

// Discovered is the number of files that passed the scan filters.
func (e *Engine) Discovered() int { return e.discovered }

// Loaded is the number of files that loaded successfully.
func (e *Engine) Loaded() int { return e.loaded }

// SheetProperties returns the properties the sheet defines itself.
func (e *Engine) SheetProperties() []msbuild.Property {
	if e.sheet == nil {
		return nil
	}
	return e.sheet.LocalProperties()
}

// targets are the projects operations may mutate. The sheet is never one of
// them, even when the scan picked it up.
func (e *Engine) targets() []*msbuild.Project {
	if e.sheet == nil {
		return e.projects
	}
	out := make([]*msbuild.Project, 0, len(e.projects))
	for _, p := range e.projects {
		if !strings.EqualFold(p.Path(), e.sheet.Path()) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) rebuild() {
	e.index.Rebuild(e.targets())
	e.checkConsistency()
}

// checkConsistency panics in debug builds and logs otherwise. Counts are
// derived from owner sets, so a failure means a value group went stale.
func (e *Engine) checkConsistency() {
	err := e.index.CheckConsistency()
	if err == nil {
		return
	}
	debug.Assert(false, "%v", err)
	e.logger.Error("property index inconsistent", "error", err)
}

func (e *Engine) sheetName() string {
	if e.sheet == nil {
		return ""
	}
	return e.sheet.Name()
}

var errNoSheet = errors.New("no property sheet loaded")
