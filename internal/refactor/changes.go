package refactor

import (
	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
)

// Change records what one property operation did.
type Change struct {
	Property         string   `json:"property" yaml:"property"`
	SheetValue       string   `json:"sheet_value,omitempty" yaml:"sheet_value,omitempty"` // value written to the property sheet
	Removed          []string `json:"removed" yaml:"removed"`                             // projects that lost their definition
	Elements         int      `json:"elements,omitempty" yaml:"elements,omitempty"`       // markup elements deleted by raw removals
	Remaining        int      `json:"remaining" yaml:"remaining"`                         // owning count afterwards
	ReferenceDeleted bool     `json:"reference_deleted" yaml:"reference_deleted"`
	Failures         []error  `json:"-" yaml:"-"`
}

// Err joins the per-project failures, or nil.
func (c Change) Err() error {
	return msberrors.NewMultiError(c.Failures).ErrorOrNil()
}

// GlobalChange records a switch of one global property.
type GlobalChange struct {
	Name     string  `json:"name" yaml:"name"`
	Old      string  `json:"old" yaml:"old"`
	New      string  `json:"new" yaml:"new"`
	Changed  bool    `json:"changed" yaml:"changed"`
	Projects int     `json:"projects" yaml:"projects"` // documents re-evaluated, the property sheet included
	Failures []error `json:"-" yaml:"-"`
}

func (c GlobalChange) Err() error {
	return msberrors.NewMultiError(c.Failures).ErrorOrNil()
}

// SaveResult records a batch persist.
type SaveResult struct {
	SheetSaved bool     `json:"sheet_saved" yaml:"sheet_saved"`
	Saved      []string `json:"saved" yaml:"saved"`         // written to disk
	Unchanged  []string `json:"unchanged" yaml:"unchanged"` // content identical to disk, not written
	Attached   []string `json:"attached" yaml:"attached"`   // received an import of the property sheet
	Failures   []error  `json:"-" yaml:"-"`
}

func (r SaveResult) Err() error {
	return msberrors.NewMultiError(r.Failures).ErrorOrNil()
}

// CleanupResult records a RemoveEmptyXMLElements pass.
type CleanupResult struct {
	Removed  map[string]int `json:"removed" yaml:"removed"` // project path → elements removed
	Elements int            `json:"elements" yaml:"elements"`
	Save     SaveResult     `json:"save" yaml:"save"`
	Failures []error        `json:"-" yaml:"-"`
}

func (r CleanupResult) Err() error {
	all := append(append([]error(nil), r.Failures...), r.Save.Failures...)
	return msberrors.NewMultiError(all).ErrorOrNil()
}
