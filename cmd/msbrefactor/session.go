package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/config"
	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/indexing"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
)

// loadConfigWithOverrides loads the config file and applies command line
// flags on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.String("config") != "":
		cfg, err = config.Load(c.String("config"))
	default:
		cfg, err = config.LoadWithRoot(c.String("root"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if root := c.String("root"); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", root, err)
		}
		cfg.Project.Root = abs
	}
	if sheet := c.String("sheet"); sheet != "" {
		cfg.Project.PropertySheet = sheet
	}
	if v := c.String("configuration"); v != "" {
		cfg.SetGlobal("Configuration", v)
	}
	if v := c.String("platform"); v != "" {
		cfg.SetGlobal("Platform", v)
	}
	for _, kv := range c.StringSlice("global") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --global %q: expected NAME=VALUE", kv)
		}
		cfg.SetGlobal(strings.TrimSpace(name), value)
	}
	if exts := c.StringSlice("ext"); len(exts) > 0 {
		cfg.Scan.Extensions = cfg.Scan.Extensions[:0]
		for _, e := range exts {
			for _, part := range config.ParseIgnoreList(e) {
				cfg.Scan.Extensions = append(cfg.Scan.Extensions, config.NormalizeExtension(part))
			}
		}
	}
	if ignore := c.String("ignore"); ignore != "" {
		cfg.Scan.Ignore = config.DeduplicatePatterns(append(cfg.Scan.Ignore, config.ParseIgnoreList(ignore)...))
	}
	if includes := c.StringSlice("include"); len(includes) > 0 {
		cfg.Include = config.DeduplicatePatterns(includes)
	}
	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludes...))
	}
	if w := c.Int("workers"); w > 0 {
		cfg.Performance.ParallelFileWorkers = w
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session is one command invocation: the effective config, a loaded engine
// and the output settings.
type session struct {
	cfg    *config.Config
	engine *refactor.Engine
	scan   *indexing.ScanResult
	logger *slog.Logger
	format display.Format
	out    io.Writer
}

func scanOptions(cfg *config.Config, logger *slog.Logger) indexing.ScanOptions {
	return indexing.ScanOptions{
		Extensions:     cfg.Scan.Extensions,
		Ignore:         cfg.Scan.Ignore,
		Include:        cfg.Include,
		Exclude:        cfg.Exclude,
		FollowSymlinks: cfg.Scan.FollowSymlinks,
		MaxFileSizeKB:  cfg.Scan.MaxFileSizeKB,
		Workers:        cfg.Workers(),
		Logger:         logger,
	}
}

// loadEngine creates an engine from cfg and loads the sheet and the root.
func loadEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*refactor.Engine, *indexing.ScanResult, error) {
	opts := scanOptions(cfg, logger)
	engine := refactor.New(refactor.Options{
		Globals:        cfg.GlobalContext(),
		Extensions:     opts.Extensions,
		Ignore:         opts.Ignore,
		Include:        opts.Include,
		Exclude:        opts.Exclude,
		FollowSymlinks: opts.FollowSymlinks,
		MaxFileSizeKB:  opts.MaxFileSizeKB,
		Workers:        opts.Workers,
		Logger:         logger,
	})
	if _, err := engine.LoadPropertySheet(cfg.SheetPath()); err != nil {
		return nil, nil, fmt.Errorf("failed to load property sheet: %w", err)
	}
	scan, err := engine.LoadDirectory(ctx, cfg.Project.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", cfg.Project.Root, err)
	}
	return engine, scan, nil
}

// openSession loads the config, the property sheet and every project under
// the root.
func openSession(c *cli.Context) (*session, error) {
	format, err := display.ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	logger := loggerFrom(c)
	engine, scan, err := loadEngine(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		engine: engine,
		scan:   scan,
		logger: logger,
		format: format,
		out:    c.App.Writer,
	}, nil
}

// emit writes v in the machine format, or text in text mode.
func (s *session) emit(v any, text func() (string, error)) error {
	if s.format.IsMachine() {
		return display.NewPrinter(s.out, s.format).Print(v)
	}
	out, err := text()
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.out, out)
	return err
}

func (s *session) root() string { return s.engine.Root() }
