package refactor

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// BuildEntry is one project in a build report.
type BuildEntry struct {
	Project    string `json:"project" yaml:"project"`
	OutputPath string `json:"output_path" yaml:"output_path"`
	Artifact   string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// BuildReport buckets projects by whether their declared output path is the
// expected build directory.
type BuildReport struct {
	OutputDir       string       `json:"output_dir" yaml:"output_dir"`
	Verified        bool         `json:"verified" yaml:"verified"`
	Matching        []BuildEntry `json:"matching" yaml:"matching"`
	Mismatched      []BuildEntry `json:"mismatched" yaml:"mismatched"`
	MissingArtifact []BuildEntry `json:"missing_artifact" yaml:"missing_artifact"`
}

// Total is the number of projects in the report.
func (r *BuildReport) Total() int {
	return len(r.Matching) + len(r.Mismatched) + len(r.MissingArtifact)
}

// DefineBuild reports, per project, whether its output path resolves to
// outputDir. A relative outputDir is taken from the scanned root. With
// verifyArtifacts, a matching project whose output file is not present under
// outputDir is reported as missing its artifact instead.
func (e *Engine) DefineBuild(outputDir string, verifyArtifacts bool) *BuildReport {
	dir := outputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.root, filepath.FromSlash(dir))
	}
	// Without a scanned root the join above is still relative
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	want := msbuild.ResolvePath(dir, dir)

	report := &BuildReport{OutputDir: dir, Verified: verifyArtifacts}
	for _, p := range e.targets() {
		entry := BuildEntry{Project: p.Path(), OutputPath: p.OutputPath()}
		if entry.OutputPath == types.UnsupportedOutputPath || entry.OutputPath != want {
			report.Mismatched = append(report.Mismatched, entry)
			continue
		}
		if !verifyArtifacts {
			report.Matching = append(report.Matching, entry)
			continue
		}
		entry.Artifact = p.OutputFileName()
		if entry.Artifact == "" || !fileExists(filepath.Join(dir, entry.Artifact)) {
			report.MissingArtifact = append(report.MissingArtifact, entry)
			continue
		}
		report.Matching = append(report.Matching, entry)
	}
	return report
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
