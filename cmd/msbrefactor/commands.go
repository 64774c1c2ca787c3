package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/core"
	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
	"github.com/standardbeagle/msbrefactor/internal/version"
)

func scanCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	view := display.NewScanView(s.root(), s.scan, s.engine.Index())
	if err := s.emit(view, func() (string, error) { return display.RenderScan(view) }); err != nil {
		return err
	}
	if len(s.scan.Failures) > 0 {
		return errPartialFailure
	}
	return nil
}

func propsCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	views := display.NewIndexView(s.engine.Index().References(), s.root(), c.Int("min-count"))
	return s.emit(views, func() (string, error) { return display.RenderIndex(views) })
}

func showCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: msbrefactor show <name>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	ref, err := s.engine.Index().Lookup(c.Args().First())
	if err != nil {
		return err
	}
	view := display.NewPropertyView(ref, s.root())
	return s.emit(view, func() (string, error) { return display.RenderProperty(view) })
}

// finishMutation saves unless --dry-run, prints the result and turns any
// per-file failure into a non-zero exit.
func finishMutation(c *cli.Context, s *session, result display.Result, failed bool) error {
	result.DryRun = c.Bool("dry-run")
	if !result.DryRun {
		save := s.engine.SaveAll(c.Bool("force"))
		view := display.NewSaveView(save, s.root())
		result.Save = &view
		failed = failed || save.Err() != nil
	}
	if err := s.emit(result, func() (string, error) { return renderResult(result) }); err != nil {
		return err
	}
	if failed {
		return errPartialFailure
	}
	return nil
}

func renderResult(r display.Result) (string, error) {
	var buf strings.Builder
	if r.Global != nil {
		buf.WriteString(display.RenderGlobalChange(*r.Global))
	}
	if r.Changes != nil {
		out, err := display.RenderChanges(r.Changes)
		if err != nil {
			return "", err
		}
		buf.WriteString(out)
	}
	if r.Cleanup != nil {
		buf.WriteString(display.RenderCleanup(*r.Cleanup))
	}
	if r.Save != nil {
		buf.WriteString(display.RenderSave(*r.Save))
	}
	if r.DryRun {
		buf.WriteString(display.Gold("Dry run: no files were written.\n"))
	}
	return buf.String(), nil
}

func changesFailed(changes []refactor.Change) bool {
	for _, ch := range changes {
		if ch.Err() != nil {
			return true
		}
	}
	return false
}

func applyChanges(c *cli.Context, s *session, changes []refactor.Change) error {
	return finishMutation(c, s, display.Result{Changes: display.NewChangeViews(changes, s.root())}, changesFailed(changes))
}

func moveCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: msbrefactor move <name> <value>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	change := s.engine.Move(c.Args().Get(0), c.Args().Get(1))
	return applyChanges(c, s, []refactor.Change{change})
}

func removeCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("usage: msbrefactor remove <name>...")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	return applyChanges(c, s, s.engine.RemoveMany(c.Args().Slice()))
}

func removeXMLCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("usage: msbrefactor remove-xml <name>...")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	return applyChanges(c, s, s.engine.RemoveXml(c.Args().Slice()))
}

// valueGroupArgs resolves the <name> <value> arguments of the value commands.
func valueGroupArgs(c *cli.Context, s *session) (*core.ValueGroup, error) {
	ref, err := s.engine.Index().Lookup(c.Args().Get(0))
	if err != nil {
		return nil, err
	}
	return ref.FindValue(c.Args().Get(1))
}

func moveValueCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: msbrefactor move-value <name> <value>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	group, err := valueGroupArgs(c, s)
	if err != nil {
		return err
	}
	var change refactor.Change
	if c.Bool("all-configs") {
		change = s.engine.MoveValueAllConfigs(group)
	} else {
		change = s.engine.MoveValue(group)
	}
	return applyChanges(c, s, []refactor.Change{change})
}

func removeValueCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: msbrefactor remove-value <name> <value>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	group, err := valueGroupArgs(c, s)
	if err != nil {
		return err
	}
	return applyChanges(c, s, []refactor.Change{s.engine.RemoveValue(group)})
}

func removeSheetPropsCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if c.Bool("all-configs") {
		return applyChanges(c, s, s.engine.RemoveAllPropertiesFromProjects())
	}
	return applyChanges(c, s, s.engine.RemovePropertiesFromProjects())
}

// globalResult is the outcome of set-global: the switch itself and the index
// as it looks under the new context.
type globalResult struct {
	Global     display.GlobalChangeView `json:"global" yaml:"global"`
	Properties []display.PropertyView   `json:"properties" yaml:"properties"`
}

func setGlobalCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: msbrefactor set-global <name> <value>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	change := s.engine.SetGlobalProperty(c.Args().Get(0), c.Args().Get(1))
	result := globalResult{
		Global:     display.NewGlobalChangeView(change, s.root()),
		Properties: display.NewIndexView(s.engine.Index().References(), s.root(), c.Int("min-count")),
	}
	err = s.emit(result, func() (string, error) {
		index, err := display.RenderIndex(result.Properties)
		if err != nil {
			return "", err
		}
		return display.RenderGlobalChange(result.Global) + index, nil
	})
	if err != nil {
		return err
	}
	if change.Err() != nil {
		return errPartialFailure
	}
	return nil
}

func cleanCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	result := s.engine.RemoveEmptyXMLElements()
	view := display.NewCleanupView(result, s.root())
	out := display.Result{Cleanup: &view}
	if err := s.emit(out, func() (string, error) { return renderResult(out) }); err != nil {
		return err
	}
	if result.Err() != nil {
		return errPartialFailure
	}
	return nil
}

func attachCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	result := s.engine.AttachImportForAll()
	view := display.NewSaveView(result, s.root())
	out := display.Result{Save: &view}
	if err := s.emit(out, func() (string, error) { return renderResult(out) }); err != nil {
		return err
	}
	if result.Err() != nil {
		return errPartialFailure
	}
	return nil
}

func buildReportCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	dir := c.Args().First()
	if dir == "" {
		dir = s.cfg.Build.OutputDir
	}
	if dir == "" {
		return fmt.Errorf("no output directory: pass one or set build.output_dir in the config")
	}
	verify := c.Bool("verify") || s.cfg.Build.VerifyArtifacts

	report := display.NewBuildReportView(s.engine.DefineBuild(dir, verify), s.root())
	return s.emit(report, func() (string, error) { return display.RenderBuildReport(report) })
}

func versionCommand(c *cli.Context) error {
	_, err := fmt.Fprintf(c.App.Writer, "%s\nBuild ID: %s\n", version.FullInfo(), version.BuildID())
	return err
}
