package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ddddddO/gtree"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/standardbeagle/msbrefactor/internal/core"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
)

func newTable(buf *strings.Builder) *tablewriter.Table {
	return tablewriter.NewTable(buf,
		tablewriter.WithRowAutoWrap(tw.WrapBreak),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off, ShowHeader: tw.On}},
		})))
}

// RenderScan summarizes a scan: counts, failures and the two build axes.
func RenderScan(v ScanView) (string, error) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s\n", Bold("Root:"), v.Root)
	fmt.Fprintf(&buf, "Discovered %s project files, loaded %s, %s distinct properties\n",
		LightBluef("%d", v.Discovered), Greenf("%d", v.Loaded), LightBluef("%d", v.Properties))
	buf.WriteString(renderFailures(v.Failures))

	for _, axis := range []struct {
		name   string
		values []core.AxisValue
	}{
		{"Configurations", v.Configurations},
		{"Platforms", v.Platforms},
	} {
		fmt.Fprintf(&buf, "\n%s\n", LightBlue(axis.name))
		if len(axis.values) == 0 {
			buf.WriteString(Grey("  none declared\n"))
			continue
		}
		table := newTable(&buf)
		table.Header("Value", "Projects")
		for _, av := range axis.values {
			if err := table.Append([]string{av.Value, fmt.Sprint(av.Count)}); err != nil {
				return "", fmt.Errorf("error rendering %s: %w", strings.ToLower(axis.name), err)
			}
		}
		if err := table.Render(); err != nil {
			return "", fmt.Errorf("error rendering %s: %w", strings.ToLower(axis.name), err)
		}
	}
	return buf.String(), nil
}

// RenderIndex lists properties with their owner and value counts, most
// shared first. The most common value is shown when there is one.
func RenderIndex(props []PropertyView) (string, error) {
	if len(props) == 0 {
		return Gold("No properties found.\n"), nil
	}

	var buf strings.Builder
	table := newTable(&buf)
	table.Header(LightBlue("Property"), "Projects", "Values", "Most common")

	data := make([][]string, len(props))
	for i, p := range props {
		common := ""
		if len(p.Values) > 0 {
			top := p.Values[0]
			common = fmt.Sprintf("%s (%d)", displayValue(top.Value), top.Count)
		}
		values := fmt.Sprint(len(p.Values))
		if len(p.Values) == 1 && p.Owners > 1 {
			values = Green(values)
		}
		data[i] = []string{LightBlue(p.Name), fmt.Sprint(p.Owners), values, common}
	}
	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("error rendering index: %w", err)
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("error rendering index: %w", err)
	}
	fmt.Fprintf(&buf, "\n%s %d properties\n", Grey("Showing"), len(props))
	return buf.String(), nil
}

// RenderProperty draws one property as a tree of values and their projects.
func RenderProperty(p PropertyView) (string, error) {
	root := gtree.NewRoot(fmt.Sprintf("%s %s", LightBlue(p.Name), Greyf("(%d projects, %d values)", p.Owners, len(p.Values))))
	for _, v := range p.Values {
		node := root.Add(fmt.Sprintf("%s %s", displayValue(v.Value), Greyf("(%d)", v.Count)))
		for _, proj := range v.Projects {
			node.Add(proj)
		}
	}

	var buf strings.Builder
	if err := gtree.OutputFromRoot(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderChanges tabulates the outcome of property mutations.
func RenderChanges(changes []ChangeView) (string, error) {
	if len(changes) == 0 {
		return Gold("Nothing to change.\n"), nil
	}

	var buf strings.Builder
	table := newTable(&buf)
	table.Header(LightBlue("Property"), "Removed from", "Remaining", "Sheet value", "Status")

	var failures []FailureView
	data := make([][]string, len(changes))
	for i, c := range changes {
		status := Grey("unchanged")
		switch {
		case len(c.Failures) > 0:
			status = Red("partial")
		case c.ReferenceDeleted:
			status = Green("gone")
		case len(c.Removed) > 0:
			status = Green("reduced")
		}
		removed := fmt.Sprint(len(c.Removed))
		if c.Elements > 0 {
			removed = fmt.Sprintf("%d (%d elements)", len(c.Removed), c.Elements)
		}
		data[i] = []string{LightBlue(c.Property), removed, fmt.Sprint(c.Remaining), c.SheetValue, status}
		failures = append(failures, c.Failures...)
	}
	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("error rendering changes: %w", err)
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("error rendering changes: %w", err)
	}
	buf.WriteString(renderFailures(failures))
	return buf.String(), nil
}

func RenderGlobalChange(c GlobalChangeView) string {
	var buf strings.Builder
	if !c.Changed {
		fmt.Fprintf(&buf, "%s is already %s\n", LightBlue(c.Name), c.New)
		return buf.String()
	}
	fmt.Fprintf(&buf, "%s: %s → %s, re-evaluated %d projects\n",
		LightBlue(c.Name), Grey(c.Old), Green(c.New), c.Projects)
	buf.WriteString(renderFailures(c.Failures))
	return buf.String()
}

// RenderSave reports what a save pass wrote.
func RenderSave(s SaveView) string {
	var buf strings.Builder
	if s.SheetSaved {
		fmt.Fprintf(&buf, "%s property sheet\n", Green("Saved"))
	}
	fmt.Fprintf(&buf, "%s %d projects, %d unchanged, %d imports attached\n",
		Green("Saved"), len(s.Saved), len(s.Unchanged), len(s.Attached))
	for _, p := range s.Attached {
		fmt.Fprintf(&buf, "  %s %s\n", Grey("import →"), p)
	}
	buf.WriteString(renderFailures(s.Failures))
	return buf.String()
}

func RenderCleanup(c CleanupView) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Removed %d empty elements from %d projects\n", c.Elements, len(c.Removed))
	paths := make([]string, 0, len(c.Removed))
	for p := range c.Removed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(&buf, "  %s %s\n", p, Greyf("(%d)", c.Removed[p]))
	}
	buf.WriteString(renderFailures(c.Failures))
	buf.WriteString(RenderSave(c.Save))
	return buf.String()
}

// RenderBuildReport draws the three buckets of a build report as a tree.
func RenderBuildReport(r *refactor.BuildReport) (string, error) {
	root := gtree.NewRoot(fmt.Sprintf("%s %s", Bold("Output directory"), r.OutputDir))

	bucket := func(title string, entries []refactor.BuildEntry, line func(refactor.BuildEntry) string) {
		node := root.Add(fmt.Sprintf("%s %s", title, Greyf("(%d)", len(entries))))
		for _, e := range entries {
			node.Add(line(e))
		}
	}
	bucket(Green("Matching"), r.Matching, func(e refactor.BuildEntry) string { return e.Project })
	bucket(Red("Mismatched"), r.Mismatched, func(e refactor.BuildEntry) string {
		if e.OutputPath == "" {
			return e.Project + Grey(" → no output path")
		}
		return e.Project + Grey(" → "+e.OutputPath)
	})
	if r.Verified {
		bucket(Gold("Missing artifact"), r.MissingArtifact, func(e refactor.BuildEntry) string {
			if e.Artifact == "" {
				return e.Project + Grey(" → unknown output file")
			}
			return e.Project + Grey(" → "+e.Artifact)
		})
	}

	var buf strings.Builder
	if err := gtree.OutputFromRoot(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderFailures(failures []FailureView) string {
	if len(failures) == 0 {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n", Redf("%d failures:", len(failures)))
	for _, f := range failures {
		if f.Path != "" && !strings.Contains(f.Error, f.Path) {
			fmt.Fprintf(&buf, "  %s: %s\n", f.Path, f.Error)
		} else {
			fmt.Fprintf(&buf, "  %s\n", f.Error)
		}
	}
	return buf.String()
}

func displayValue(v string) string {
	if v == "" {
		return Grey("(empty)")
	}
	return v
}
