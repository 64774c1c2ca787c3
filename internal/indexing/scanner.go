package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/logging"
	"github.com/standardbeagle/msbrefactor/internal/msbuild"
	"github.com/standardbeagle/msbrefactor/internal/security"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// ScanOptions controls which files a scan discovers and how they are loaded.
type ScanOptions struct {
	Extensions     []string // recognized project extensions, e.g. ".csproj"
	Ignore         []string // case-insensitive substrings of the absolute path
	Include        []string // doublestar globs relative to the root; empty admits every file
	Exclude        []string // doublestar globs relative to the root
	FollowSymlinks bool
	MaxFileSizeKB  int64 // larger files are reported as failures; 0 = no limit
	Workers        int   // parallel loads; 0 = NumCPU
	Logger         *slog.Logger
}

// ScanResult is the outcome of one directory scan.
type ScanResult struct {
	Projects   []*msbuild.Project // loaded projects sorted by path
	Discovered int                // files that passed the extension and ignore filters
	Loaded     int
	Failures   []error // one *errors.ParseError per file that failed to load
}

// FileScanner discovers project files under a root and loads them in parallel.
type FileScanner struct {
	opts       ScanOptions
	extensions map[string]bool
	ignore     []string
	validator  *security.FileValidator
	logger     *slog.Logger
}

// NewFileScanner creates a scanner. Empty extensions fall back to the defaults.
func NewFileScanner(opts ScanOptions) *FileScanner {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = types.DefaultProjectExtensions
	}
	s := &FileScanner{
		opts:       opts,
		extensions: make(map[string]bool, len(exts)),
		validator:  security.NewFileValidator(opts.MaxFileSizeKB),
		logger:     opts.Logger,
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e != "" {
			s.extensions[e] = true
		}
	}
	for _, ig := range opts.Ignore {
		if ig = strings.ToLower(strings.TrimSpace(ig)); ig != "" {
			s.ignore = append(s.ignore, ig)
		}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

func (s *FileScanner) workers() int {
	if s.opts.Workers > 0 {
		return s.opts.Workers
	}
	return runtime.NumCPU()
}

// HasProjectExtension reports whether path carries a recognized extension.
func (s *FileScanner) HasProjectExtension(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// IsIgnored reports whether the absolute path contains an ignore substring.
func (s *FileScanner) IsIgnored(path string) bool {
	lower := strings.ToLower(path)
	for _, ig := range s.ignore {
		if strings.Contains(lower, ig) {
			return true
		}
	}
	return false
}

// isExcluded matches rel (slash separated, relative to the root) against the
// exclude globs. A directory is excluded when a pattern ending in /** names it.
func (s *FileScanner) isExcluded(rel string, dir bool) bool {
	for _, pattern := range s.opts.Exclude {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
		if dir && strings.HasSuffix(pattern, "/**") {
			if matched, err := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// isIncluded reports whether rel matches an include glob. With no include
// globs every file is admitted.
func (s *FileScanner) isIncluded(rel string) bool {
	if len(s.opts.Include) == 0 {
		return true
	}
	for _, pattern := range s.opts.Include {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// Matches reports whether a file under root would be picked up by a scan.
func (s *FileScanner) Matches(root, path string) bool {
	if !s.HasProjectExtension(path) || s.IsIgnored(path) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	return s.isIncluded(rel) && !s.isExcluded(rel, false)
}

// Discover walks root and returns every matching file, sorted. Symlinked
// directories are followed only when FollowSymlinks is set. Cycles are cut
// by remembering each directory's real path.
func (s *FileScanner) Discover(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	visited := make(map[string]bool)
	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		realPath, err := filepath.EvalSymlinks(dir)
		if err != nil {
			debug.LogScan("skipping unresolvable directory %s: %v\n", dir, err)
			return nil
		}
		if visited[realPath] {
			debug.LogScan("cycle detected, skipping %s -> %s\n", dir, realPath)
			return nil
		}
		visited[realPath] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("cannot read directory", "path", dir, "error", err)
			return nil
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			rel, _ := filepath.Rel(root, path)
			rel = filepath.ToSlash(rel)

			isDir := e.IsDir()
			if e.Type()&fs.ModeSymlink != 0 {
				target, err := os.Stat(path)
				if err != nil {
					continue
				}
				isDir = target.IsDir()
				if isDir && !s.opts.FollowSymlinks {
					continue
				}
			}

			if isDir {
				if s.isExcluded(rel, true) {
					debug.LogScan("excluded directory %s\n", rel)
					continue
				}
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			if !s.HasProjectExtension(path) {
				continue
			}
			if s.IsIgnored(path) {
				debug.LogScan("ignored %s\n", path)
				continue
			}
			if s.isExcluded(rel, false) || !s.isIncluded(rel) {
				continue
			}
			files = append(files, path)
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Scan discovers project files under root and loads each under globals into
// collection. A file that fails to load is logged and recorded in Failures;
// it never aborts the scan. Only an unreadable root or a cancelled context
// returns an error.
func (s *FileScanner) Scan(ctx context.Context, root string, globals types.GlobalContext, collection *msbuild.Collection) (*ScanResult, error) {
	files, err := s.Discover(ctx, root)
	if err != nil {
		return nil, err
	}
	debug.LogScan("discovered %d project files under %s\n", len(files), root)

	result := &ScanResult{Discovered: len(files)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var p *msbuild.Project
			err := s.validator.Validate(path)
			if err != nil {
				err = msberrors.NewParseError(path, err)
			} else {
				p, err = collection.Load(path, globals)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("failed to load project", "path", path, "error", err)
				result.Failures = append(result.Failures, err)
				return nil
			}
			result.Projects = append(result.Projects, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Projects, func(i, j int) bool {
		return result.Projects[i].Path() < result.Projects[j].Path()
	})
	result.Loaded = len(result.Projects)
	s.logger.Info("scan complete", "root", root, "discovered", result.Discovered,
		"loaded", result.Loaded, "failed", len(result.Failures))
	return result, nil
}
