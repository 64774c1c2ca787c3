package refactor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/pkg/pathutil"
)

// SaveAll persists the sheet, then every dirty project (every project when
// force is set) in parallel, attaches the sheet import to each persisted
// project and re-evaluates everything. One project's failure does not stop
// the batch; it stays dirty for a later retry.
func (e *Engine) SaveAll(force bool) SaveResult {
	var result SaveResult

	if e.sheet != nil && (force || e.sheet.IsDirty() || !e.sheet.Exists()) {
		written, err := e.sheet.Save(force)
		if err != nil {
			e.logger.Warn("failed to save property sheet", "path", e.sheet.Path(), "error", err)
			result.Failures = append(result.Failures, err)
		}
		result.SheetSaved = written
	}

	var candidates []*msbuild.Project
	for _, p := range e.targets() {
		if force || p.IsDirty() {
			candidates = append(candidates, p)
		}
	}
	saved := e.saveProjects(candidates, force)
	result.Saved = saved.Saved
	result.Unchanged = saved.Unchanged
	result.Failures = append(result.Failures, saved.Failures...)

	if e.sheet != nil {
		persisted := append(append([]string(nil), saved.Saved...), saved.Unchanged...)
		sort.Strings(persisted)
		for _, path := range persisted {
			p, ok := e.Project(path)
			if !ok {
				continue
			}
			attached, err := e.AttachImportIfNecessary(p)
			if err != nil {
				result.Failures = append(result.Failures, err)
				continue
			}
			if attached {
				result.Attached = append(result.Attached, path)
			}
		}
	}

	result.Failures = append(result.Failures, e.reevaluateAll()...)
	e.rebuild()
	e.logger.Info("saved projects",
		"saved", len(result.Saved), "unchanged", len(result.Unchanged),
		"attached", len(result.Attached), "failed", len(result.Failures))
	return result
}

// saveProjects writes projects concurrently. Each project owns its document,
// so saves of different projects never touch shared state.
func (e *Engine) saveProjects(projects []*msbuild.Project, force bool) SaveResult {
	var (
		mu     sync.Mutex
		result SaveResult
	)
	p := pool.New().WithMaxGoroutines(e.opts.Workers)
	for _, proj := range projects {
		p.Go(func() {
			written, err := proj.Save(force)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				e.logger.Warn("failed to save project", "path", proj.Path(), "error", err)
				result.Failures = append(result.Failures, err)
			case written:
				result.Saved = append(result.Saved, proj.Path())
			default:
				result.Unchanged = append(result.Unchanged, proj.Path())
			}
		})
	}
	p.Wait()

	sort.Strings(result.Saved)
	sort.Strings(result.Unchanged)
	return result
}

// AttachImportIfNecessary inserts an import of the property sheet as the
// first element of p and saves it, unless p already imports a file with the
// sheet's name. Reports whether an import was added.
func (e *Engine) AttachImportIfNecessary(p *msbuild.Project) (bool, error) {
	if e.sheet == nil {
		return false, errNoSheet
	}
	if p.HasImportOf(e.sheetName()) {
		return false, nil
	}

	rel, err := pathutil.ToMSBuildRelative(e.sheet.Path(), p.Dir())
	if err != nil {
		return false, fmt.Errorf("relative path from %s to %s: %w", p.Dir(), e.sheet.Path(), err)
	}

	if err := p.InsertImportFirst(rel); err != nil {
		e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
	}
	if _, err := p.Save(false); err != nil {
		e.logger.Warn("failed to save project", "path", p.Path(), "error", err)
		return true, err
	}
	debug.LogRefactor("attached import %s to %s\n", rel, p.Path())
	return true, nil
}

// AttachImportForAll attaches the sheet import to every project missing it.
func (e *Engine) AttachImportForAll() SaveResult {
	var result SaveResult
	if e.sheet == nil {
		result.Failures = append(result.Failures, errNoSheet)
		return result
	}
	for _, p := range e.targets() {
		attached, err := e.AttachImportIfNecessary(p)
		if err != nil {
			result.Failures = append(result.Failures, err)
		}
		if attached {
			result.Attached = append(result.Attached, p.Path())
			if err == nil {
				result.Saved = append(result.Saved, p.Path())
			}
		}
	}
	e.rebuild()
	return result
}

func (e *Engine) reevaluateAll() []error {
	var errs []error
	all := e.projects
	if e.sheet != nil && !containsProject(all, e.sheet) {
		all = append(append([]*msbuild.Project(nil), all...), e.sheet)
	}
	for _, p := range all {
		if err := p.Reevaluate(); err != nil {
			e.logger.Warn("failed to re-evaluate project", "path", p.Path(), "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}
