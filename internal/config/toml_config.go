package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the KDL sections. Pointer fields distinguish "absent" from zero values.
type tomlFile struct {
	Version *int `toml:"version"`
	Project struct {
		Root          *string `toml:"root"`
		PropertySheet *string `toml:"property_sheet"`
	} `toml:"project"`
	Scan struct {
		Extensions     []string `toml:"extensions"`
		Ignore         []string `toml:"ignore"`
		FollowSymlinks *bool    `toml:"follow_symlinks"`
		MaxFileSizeKB  *int64   `toml:"max_file_size_kb"`
	} `toml:"scan"`
	Global      map[string]string `toml:"global"`
	Performance struct {
		ParallelFileWorkers *int `toml:"parallel_file_workers"`
	} `toml:"performance"`
	Build struct {
		OutputDir       *string `toml:"output_dir"`
		VerifyArtifacts *bool   `toml:"verify_artifacts"`
	} `toml:"build"`
	Watch struct {
		DebounceMs *int `toml:"debounce_ms"`
	} `toml:"watch"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// LoadTOML attempts to load configuration from the .msbrefactor.toml file in projectRoot
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, TOMLFileName)

	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(tomlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}

	cfg, err := parseTOML(content)
	if err != nil {
		return nil, err
	}

	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func parseTOML(content []byte) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default("")
	if f.Version != nil {
		cfg.Version = *f.Version
	}
	if f.Project.Root != nil {
		cfg.Project.Root = *f.Project.Root
	}
	if f.Project.PropertySheet != nil {
		cfg.Project.PropertySheet = *f.Project.PropertySheet
	}
	if len(f.Scan.Extensions) > 0 {
		cfg.Scan.Extensions = f.Scan.Extensions
	}
	for _, s := range f.Scan.Ignore {
		cfg.Scan.Ignore = append(cfg.Scan.Ignore, ParseIgnoreList(s)...)
	}
	if f.Scan.FollowSymlinks != nil {
		cfg.Scan.FollowSymlinks = *f.Scan.FollowSymlinks
	}
	if f.Scan.MaxFileSizeKB != nil {
		cfg.Scan.MaxFileSizeKB = *f.Scan.MaxFileSizeKB
	}

	// TOML tables are unordered; apply keys sorted so the context is deterministic
	keys := make([]string, 0, len(f.Global))
	for k := range f.Global {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg.SetGlobal(k, f.Global[k])
	}

	if f.Performance.ParallelFileWorkers != nil {
		cfg.Performance.ParallelFileWorkers = *f.Performance.ParallelFileWorkers
	}
	if f.Build.OutputDir != nil {
		cfg.Build.OutputDir = *f.Build.OutputDir
	}
	if f.Build.VerifyArtifacts != nil {
		cfg.Build.VerifyArtifacts = *f.Build.VerifyArtifacts
	}
	if f.Watch.DebounceMs != nil {
		cfg.Watch.DebounceMs = *f.Watch.DebounceMs
	}
	if f.Include != nil {
		cfg.Include = f.Include
	}
	if f.Exclude != nil {
		cfg.Exclude = f.Exclude
	}

	return cfg, nil
}

// GenerateTOML renders cfg as a TOML document LoadTOML reads back.
func GenerateTOML(cfg *Config) (string, error) {
	var f tomlFile
	version := cfg.Version
	f.Version = &version
	root := "."
	f.Project.Root = &root
	f.Project.PropertySheet = &cfg.Project.PropertySheet
	f.Scan.Extensions = cfg.Scan.Extensions
	f.Scan.Ignore = cfg.Scan.Ignore
	f.Scan.FollowSymlinks = &cfg.Scan.FollowSymlinks
	f.Scan.MaxFileSizeKB = &cfg.Scan.MaxFileSizeKB
	f.Global = make(map[string]string, len(cfg.Global))
	for _, p := range cfg.Global {
		f.Global[p.Name] = p.Value
	}
	f.Performance.ParallelFileWorkers = &cfg.Performance.ParallelFileWorkers
	f.Build.OutputDir = &cfg.Build.OutputDir
	f.Build.VerifyArtifacts = &cfg.Build.VerifyArtifacts
	f.Watch.DebounceMs = &cfg.Watch.DebounceMs
	f.Include = cfg.Include
	f.Exclude = cfg.Exclude

	out, err := toml.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
