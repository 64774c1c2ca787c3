package display

import (
	"github.com/standardbeagle/msbrefactor/internal/core"
	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/indexing"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
	"github.com/standardbeagle/msbrefactor/pkg/pathutil"
)

// Views are output snapshots of engine results with paths made relative to
// the scanned root. They carry json and yaml tags for machine output and feed
// the text renderers.

type FailureView struct {
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Error string `json:"error" yaml:"error"`
}

type ScanView struct {
	Root           string           `json:"root" yaml:"root"`
	Discovered     int              `json:"discovered" yaml:"discovered"`
	Loaded         int              `json:"loaded" yaml:"loaded"`
	Properties     int              `json:"properties" yaml:"properties"`
	Configurations []core.AxisValue `json:"configurations" yaml:"configurations"`
	Platforms      []core.AxisValue `json:"platforms" yaml:"platforms"`
	Failures       []FailureView    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type ValueView struct {
	Value    string   `json:"value" yaml:"value"`
	Count    int      `json:"count" yaml:"count"`
	Projects []string `json:"projects" yaml:"projects"`
}

type PropertyView struct {
	Name   string      `json:"name" yaml:"name"`
	Owners int         `json:"owners" yaml:"owners"`
	Values []ValueView `json:"values" yaml:"values"`
}

type ChangeView struct {
	Property         string        `json:"property" yaml:"property"`
	SheetValue       string        `json:"sheet_value,omitempty" yaml:"sheet_value,omitempty"`
	Removed          []string      `json:"removed" yaml:"removed"`
	Elements         int           `json:"elements,omitempty" yaml:"elements,omitempty"`
	Remaining        int           `json:"remaining" yaml:"remaining"`
	ReferenceDeleted bool          `json:"reference_deleted" yaml:"reference_deleted"`
	Failures         []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type GlobalChangeView struct {
	Name     string        `json:"name" yaml:"name"`
	Old      string        `json:"old" yaml:"old"`
	New      string        `json:"new" yaml:"new"`
	Changed  bool          `json:"changed" yaml:"changed"`
	Projects int           `json:"projects" yaml:"projects"`
	Failures []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type SaveView struct {
	SheetSaved bool          `json:"sheet_saved" yaml:"sheet_saved"`
	Saved      []string      `json:"saved" yaml:"saved"`
	Unchanged  []string      `json:"unchanged" yaml:"unchanged"`
	Attached   []string      `json:"attached" yaml:"attached"`
	Failures   []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type CleanupView struct {
	Removed  map[string]int `json:"removed" yaml:"removed"`
	Elements int            `json:"elements" yaml:"elements"`
	Save     SaveView       `json:"save" yaml:"save"`
	Failures []FailureView  `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Result bundles a mutation with the save that followed it.
type Result struct {
	Changes []ChangeView      `json:"changes,omitempty" yaml:"changes,omitempty"`
	Global  *GlobalChangeView `json:"global,omitempty" yaml:"global,omitempty"`
	Cleanup *CleanupView      `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
	Save    *SaveView         `json:"save,omitempty" yaml:"save,omitempty"`
	DryRun  bool              `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

func NewFailureViews(errs []error, root string) []FailureView {
	if len(errs) == 0 {
		return nil
	}
	out := make([]FailureView, 0, len(errs))
	for _, err := range errs {
		out = append(out, FailureView{
			Path:  pathutil.ToRelative(msberrors.PathOf(err), root),
			Error: err.Error(),
		})
	}
	return out
}

func NewScanView(root string, result *indexing.ScanResult, idx *core.PropertyIndex) ScanView {
	return ScanView{
		Root:           root,
		Discovered:     result.Discovered,
		Loaded:         result.Loaded,
		Properties:     idx.Len(),
		Configurations: idx.ConfigurationAxis(),
		Platforms:      idx.PlatformAxis(),
		Failures:       NewFailureViews(result.Failures, root),
	}
}

func NewPropertyView(ref *core.PropertyReference, root string) PropertyView {
	v := PropertyView{Name: ref.Name, Owners: ref.OwningCount()}
	for _, g := range ref.Values() {
		vv := ValueView{Value: g.Value, Count: g.Count()}
		for _, p := range g.Projects() {
			vv.Projects = append(vv.Projects, pathutil.ToRelative(p.Path(), root))
		}
		v.Values = append(v.Values, vv)
	}
	return v
}

// NewIndexView lists references owned by at least minCount projects.
func NewIndexView(refs []*core.PropertyReference, root string, minCount int) []PropertyView {
	out := make([]PropertyView, 0, len(refs))
	for _, ref := range refs {
		if ref.OwningCount() < minCount {
			continue
		}
		out = append(out, NewPropertyView(ref, root))
	}
	return out
}

func NewChangeView(c refactor.Change, root string) ChangeView {
	return ChangeView{
		Property:         c.Property,
		SheetValue:       c.SheetValue,
		Removed:          pathutil.ToRelativeAll(c.Removed, root),
		Elements:         c.Elements,
		Remaining:        c.Remaining,
		ReferenceDeleted: c.ReferenceDeleted,
		Failures:         NewFailureViews(c.Failures, root),
	}
}

func NewChangeViews(changes []refactor.Change, root string) []ChangeView {
	out := make([]ChangeView, 0, len(changes))
	for _, c := range changes {
		out = append(out, NewChangeView(c, root))
	}
	return out
}

func NewGlobalChangeView(c refactor.GlobalChange, root string) GlobalChangeView {
	return GlobalChangeView{
		Name:     c.Name,
		Old:      c.Old,
		New:      c.New,
		Changed:  c.Changed,
		Projects: c.Projects,
		Failures: NewFailureViews(c.Failures, root),
	}
}

func NewSaveView(r refactor.SaveResult, root string) SaveView {
	return SaveView{
		SheetSaved: r.SheetSaved,
		Saved:      pathutil.ToRelativeAll(r.Saved, root),
		Unchanged:  pathutil.ToRelativeAll(r.Unchanged, root),
		Attached:   pathutil.ToRelativeAll(r.Attached, root),
		Failures:   NewFailureViews(r.Failures, root),
	}
}

func NewCleanupView(r refactor.CleanupResult, root string) CleanupView {
	removed := make(map[string]int, len(r.Removed))
	for path, n := range r.Removed {
		removed[pathutil.ToRelative(path, root)] = n
	}
	return CleanupView{
		Removed:  removed,
		Elements: r.Elements,
		Save:     NewSaveView(r.Save, root),
		Failures: NewFailureViews(r.Failures, root),
	}
}

// NewBuildReportView copies the report with project paths made relative.
func NewBuildReportView(r *refactor.BuildReport, root string) *refactor.BuildReport {
	rel := func(entries []refactor.BuildEntry) []refactor.BuildEntry {
		out := make([]refactor.BuildEntry, len(entries))
		for i, e := range entries {
			e.Project = pathutil.ToRelative(e.Project, root)
			out[i] = e
		}
		return out
	}
	return &refactor.BuildReport{
		OutputDir:       r.OutputDir,
		Verified:        r.Verified,
		Matching:        rel(r.Matching),
		Mismatched:      rel(r.Mismatched),
		MissingArtifact: rel(r.MissingArtifact),
	}
}
