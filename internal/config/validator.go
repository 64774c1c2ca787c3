package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	msberrors "github.com/standardbeagle/msbrefactor/internal/errors"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return msberrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateScanConfig(&cfg.Scan); err != nil {
		return msberrors.NewConfigError("scan", strings.Join(cfg.Scan.Extensions, ","), err)
	}

	if err := v.validateGlobals(cfg.Global); err != nil {
		return msberrors.NewConfigError("global", cfg.GlobalContext().String(), err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return msberrors.NewConfigError("performance", fmt.Sprint(cfg.Performance.ParallelFileWorkers), err)
	}

	if cfg.Watch.DebounceMs < 0 {
		return msberrors.NewConfigError("watch", fmt.Sprint(cfg.Watch.DebounceMs),
			fmt.Errorf("debounce_ms cannot be negative, got %d", cfg.Watch.DebounceMs))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	if strings.ContainsAny(project.PropertySheet, "*?") {
		return fmt.Errorf("property sheet cannot be a pattern, got %q", project.PropertySheet)
	}
	return nil
}

func (v *Validator) validateScanConfig(scan *Scan) error {
	if scan.MaxFileSizeKB < 0 {
		return fmt.Errorf("max_file_size_kb cannot be negative, got %d", scan.MaxFileSizeKB)
	}
	for i, ext := range scan.Extensions {
		norm := NormalizeExtension(ext)
		if norm == "" || norm == "." {
			return fmt.Errorf("extension %d is empty", i)
		}
		if strings.ContainsAny(norm, `/\*?`) {
			return fmt.Errorf("extension %q must be a plain file suffix", ext)
		}
		scan.Extensions[i] = norm
	}
	return nil
}

func (v *Validator) validateGlobals(globals []types.GlobalProperty) error {
	for _, p := range globals {
		if p.Name == "" {
			return errors.New("global property name cannot be empty")
		}
		if strings.ContainsAny(p.Name, " \t=;$()") {
			return fmt.Errorf("invalid global property name %q", p.Name)
		}
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// ParallelFileWorkers: 0 means auto-detect (will be set by smart defaults)
	if perf.ParallelFileWorkers < 0 {
		return fmt.Errorf("ParallelFileWorkers cannot be negative, got %d", perf.ParallelFileWorkers)
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.ParallelFileWorkers == 0 {
		cfg.Performance.ParallelFileWorkers = runtime.NumCPU()
	}

	if len(cfg.Scan.Extensions) == 0 {
		cfg.Scan.Extensions = append([]string(nil), types.DefaultProjectExtensions...)
	}

	if cfg.Project.PropertySheet == "" {
		cfg.Project.PropertySheet = types.DefaultPropertySheetName
	}

	// Configuration and Platform are always present in the evaluation context
	g := cfg.GlobalContext()
	if !g.Has(types.ConfigurationAxis) {
		g = g.With(types.ConfigurationAxis, types.DefaultConfiguration)
	}
	if !g.Has(types.PlatformAxis) {
		g = g.With(types.PlatformAxis, types.DefaultPlatform)
	}
	cfg.Global = g.Properties()
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
