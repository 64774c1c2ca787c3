package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/config"
	"github.com/standardbeagle/msbrefactor/internal/display"
)

func configInitCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	var (
		name    string
		content string
	)
	switch c.String("type") {
	case "kdl":
		name = config.KDLFileName
		content = config.GenerateKDL(cfg, c.Bool("minimal"))
	case "toml":
		name = config.TOMLFileName
		content, err = config.GenerateTOML(cfg)
		if err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config type: %s (want kdl or toml)", c.String("type"))
	}

	output := filepath.Join(cfg.Project.Root, name)
	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", output)
		}
	}
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Configuration file created: %s\n", output)
	fmt.Fprintf(w, "Edit the file to customize settings for your project.\n")
	return nil
}

func configShowCommand(c *cli.Context) error {
	format, err := display.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if format.IsMachine() {
		return display.NewPrinter(c.App.Writer, format).Print(cfg)
	}
	_, err = fmt.Fprint(c.App.Writer, config.GenerateKDL(cfg, false))
	return err
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Fprintf(c.App.Writer, "%s %v\n", display.Red("Configuration validation failed:"), err)
		return err
	}

	var warnings []string
	if _, err := os.Stat(cfg.Project.Root); err != nil {
		warnings = append(warnings, fmt.Sprintf("root %s does not exist", cfg.Project.Root))
	}
	if _, err := os.Stat(cfg.SheetPath()); err != nil {
		warnings = append(warnings, fmt.Sprintf("property sheet %s does not exist yet; it is created on the first save", cfg.SheetPath()))
	}
	if cfg.Build.VerifyArtifacts && cfg.Build.OutputDir == "" {
		warnings = append(warnings, "build.verify_artifacts is set but build.output_dir is empty")
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%s\n", display.Green("Configuration is valid"))
	fmt.Fprintf(w, "Root: %s\n", cfg.Project.Root)
	fmt.Fprintf(w, "Property sheet: %s\n", cfg.SheetPath())
	fmt.Fprintf(w, "Globals: %s\n", cfg.GlobalContext())
	fmt.Fprintf(w, "Extensions: %v, %d workers\n", cfg.Scan.Extensions, cfg.Workers())
	if len(warnings) > 0 {
		fmt.Fprintf(w, "\n%s\n", display.Gold("Warnings:"))
		for _, warning := range warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	return nil
}
