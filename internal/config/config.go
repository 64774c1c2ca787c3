package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/standardbeagle/msbrefactor/internal/security"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// File names searched in the project root and the user's home directory.
const (
	KDLFileName  = ".msbrefactor.kdl"
	TOMLFileName = ".msbrefactor.toml"
)

type Config struct {
	Version     int
	Project     Project
	Scan        Scan
	Global      []types.GlobalProperty // ordered global properties applied to every evaluation
	Performance Performance
	Build       Build
	Watch       Watch
	Include     []string
	Exclude     []string
}

type Project struct {
	Root          string
	PropertySheet string // relative to Root unless absolute
}

type Scan struct {
	Extensions     []string
	Ignore         []string // case-insensitive substrings of the full path
	FollowSymlinks bool
	MaxFileSizeKB  int64 // 0 = no limit
}

type Performance struct {
	ParallelFileWorkers int // 0 = auto-detect (NumCPU)
}

type Build struct {
	OutputDir       string
	VerifyArtifacts bool
}

type Watch struct {
	DebounceMs int
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root:          root,
			PropertySheet: types.DefaultPropertySheetName,
		},
		Scan: Scan{
			Extensions:    append([]string(nil), types.DefaultProjectExtensions...),
			MaxFileSizeKB: security.DefaultMaxFileSizeKB,
		},
		Global: []types.GlobalProperty{
			{Name: types.ConfigurationAxis, Value: types.DefaultConfiguration},
			{Name: types.PlatformAxis, Value: types.DefaultPlatform},
		},
		Performance: Performance{
			ParallelFileWorkers: 0,
		},
		Watch: Watch{
			DebounceMs: 300,
		},
		Include: []string{},
		Exclude: []string{
			"**/.git/**",
			"**/.vs/**",
			"**/node_modules/**",
			"**/bin/**",
			"**/obj/**",
		},
	}
}

// Load reads an explicit config file when path is set, otherwise searches the
// current directory.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	return LoadWithRoot("")
}

// LoadFile reads one config file; the format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(content)
	} else {
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, dir)
	return cfg, nil
}

// LoadWithRoot merges the base config from the home directory with the
// project config found in rootDir, falling back to defaults.
func LoadWithRoot(rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	// Step 1: Load global base config from the home directory (if exists)
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := loadFromDir(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: Load project-specific config
	projectConfig, err := loadFromDir(searchDir)
	if err != nil {
		return nil, err
	}

	// Step 3: Merge configs (project overrides base, but preserve base exclusions)
	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = absOr(searchDir)
		return baseConfig, nil
	}

	return Default(absOr(searchDir)), nil
}

// loadFromDir prefers the KDL file, then TOML. Returns nil, nil when neither exists.
func loadFromDir(dir string) (*Config, error) {
	if cfg, err := LoadKDL(dir); err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(dir)
}

func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = absOr(configDir)
		return
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
	}
	cfg.Project.Root = filepath.Clean(absOr(cfg.Project.Root))
}

func absOr(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// mergeConfigs merges a base config with a project config
// Project config takes precedence, but base exclusions are preserved
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	// Merge inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	// Ignore substrings are unioned like exclusions
	if len(base.Scan.Ignore) > 0 {
		merged.Scan.Ignore = DeduplicatePatterns(append(append([]string{}, base.Scan.Ignore...), project.Scan.Ignore...))
	}

	// Base globals fill in keys the project does not set
	g := types.GlobalContext{}
	for _, p := range base.Global {
		g = g.With(p.Name, p.Value)
	}
	for _, p := range project.Global {
		g = g.With(p.Name, p.Value)
	}
	merged.Global = g.Properties()

	return &merged
}

// DeduplicatePatterns removes duplicates while keeping first-seen order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// GlobalContext returns the configured global properties as an evaluation context.
func (c *Config) GlobalContext() types.GlobalContext {
	g := types.GlobalContext{}
	for _, p := range c.Global {
		g = g.With(p.Name, p.Value)
	}
	return g
}

// SetGlobal sets or replaces one global property, keeping order.
func (c *Config) SetGlobal(name, value string) {
	c.Global = c.GlobalContext().With(name, value).Properties()
}

// SheetPath resolves the property sheet location against the project root.
func (c *Config) SheetPath() string {
	sheet := c.Project.PropertySheet
	if sheet == "" {
		sheet = types.DefaultPropertySheetName
	}
	if filepath.IsAbs(sheet) {
		return filepath.Clean(sheet)
	}
	return filepath.Join(c.Project.Root, sheet)
}

// Workers returns the effective parallelism for load and save phases.
func (c *Config) Workers() int {
	if c.Performance.ParallelFileWorkers > 0 {
		return c.Performance.ParallelFileWorkers
	}
	return runtime.NumCPU()
}

// ParseIgnoreList splits a comma-delimited ignore list, trimming blanks.
func ParseIgnoreList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
