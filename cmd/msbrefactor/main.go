package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/logging"
	"github.com/standardbeagle/msbrefactor/internal/version"
)

// errPartialFailure is returned after the report when some files failed, so
// the exit status tells scripts to look at the failures.
var errPartialFailure = errors.New("some files could not be processed; see failures above")

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	mutationFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Apply the change in memory and report it without writing any file",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Write every project, not only the ones that changed",
		},
	}

	return &cli.App{
		Name:                   "msbrefactor",
		Usage:                  "Find and consolidate properties duplicated across MSBuild project files",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: .msbrefactor.kdl or .msbrefactor.toml in the root)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to scan for project files (overrides config)",
			},
			&cli.StringFlag{
				Name:    "sheet",
				Aliases: []string{"s"},
				Usage:   "Property sheet path, relative to the root unless absolute (overrides config)",
			},
			&cli.StringFlag{
				Name:  "configuration",
				Usage: "Configuration to evaluate projects under (e.g. Debug, Release)",
			},
			&cli.StringFlag{
				Name:  "platform",
				Usage: "Platform to evaluate projects under (e.g. AnyCPU, x64)",
			},
			&cli.StringSliceFlag{
				Name:  "global",
				Usage: "Extra global property as NAME=VALUE (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "Project file extension to scan (repeatable, e.g. --ext .csproj --ext .vcxproj)",
			},
			&cli.StringFlag{
				Name:  "ignore",
				Usage: "Comma-delimited substrings; files whose path contains one are skipped",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only scan paths matching glob patterns relative to the root (replaces config include)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude paths matching glob patterns relative to the root (e.g., --exclude '**/samples/**')",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel file loads and saves (0 = number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json or yaml",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Console log level: debug, info, warn, error or off",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write debug logs to this file (rotated)",
			},
			&cli.StringFlag{
				Name:  "debug-dir",
				Usage: "Directory for developer trace files when DEBUG=1 (default: temp dir)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable coloured output",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			if c.Bool("no-color") {
				display.SetColor(false)
			}
			logger, closer := logging.Setup(logging.Options{
				Level:   level,
				LogFile: c.String("log-file"),
				Writer:  c.App.ErrWriter,
				NoColor: c.Bool("no-color"),
			})
			c.App.Metadata = map[string]interface{}{"logger": logger, "closer": closer}

			if debug.IsDebugEnabled() {
				path, err := debug.OpenLogFile(c.String("debug-dir"))
				if err != nil {
					logger.Warn("debug tracing unavailable", "error", err)
				} else {
					logger.Info("writing debug trace", "path", path)
				}
			}
			return nil
		},
		After: func(c *cli.Context) error {
			err := debug.CloseLogFile()
			if closer, ok := c.App.Metadata["closer"].(func() error); ok {
				err = errors.Join(err, closer())
			}
			return err
		},
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Scan the root and summarize projects, failures and build axes",
				Action: scanCommand,
			},
			{
				Name:  "props",
				Usage: "List every property defined locally by the scanned projects",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "min-count",
						Aliases: []string{"m"},
						Usage:   "Only show properties defined by at least this many projects",
						Value:   1,
					},
				},
				Action: propsCommand,
			},
			{
				Name:      "show",
				Usage:     "Show the values of one property and the projects holding each",
				ArgsUsage: "<name>",
				Action:    showCommand,
			},
			{
				Name:      "move",
				Usage:     "Remove a property from every project and define it once in the property sheet",
				ArgsUsage: "<name> <value>",
				Flags:     mutationFlags,
				Action:    moveCommand,
			},
			{
				Name:      "remove",
				Usage:     "Remove properties from every project that defines them",
				ArgsUsage: "<name>...",
				Flags:     mutationFlags,
				Action:    removeCommand,
			},
			{
				Name:      "move-value",
				Usage:     "Move one value of a property to the sheet, only from the projects holding it",
				ArgsUsage: "<name> <value>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "all-configs",
						Usage: "Delete the property from every conditional branch, not only the active one",
					},
				}, mutationFlags...),
				Action: moveValueCommand,
			},
			{
				Name:      "remove-value",
				Usage:     "Remove a property only from the projects holding one value",
				ArgsUsage: "<name> <value>",
				Flags:     mutationFlags,
				Action:    removeValueCommand,
			},
			{
				Name:      "remove-xml",
				Usage:     "Delete properties from the markup of every project in every conditional branch",
				ArgsUsage: "<name>...",
				Flags:     mutationFlags,
				Action:    removeXMLCommand,
			},
			{
				Name:  "remove-sheet-props",
				Usage: "Remove from every project the properties the sheet already defines",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "all-configs",
						Usage: "Delete from every conditional branch, not only the active one",
					},
				}, mutationFlags...),
				Action: removeSheetPropsCommand,
			},
			{
				Name:      "set-global",
				Usage:     "Re-evaluate every project under a different global property and list the index",
				ArgsUsage: "<name> <value>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "min-count",
						Aliases: []string{"m"},
						Usage:   "Only show properties defined by at least this many projects",
						Value:   1,
					},
				},
				Action: setGlobalCommand,
			},
			{
				Name:   "clean",
				Usage:  "Delete empty properties and empty groups from every project and save",
				Action: cleanCommand,
			},
			{
				Name:   "attach",
				Usage:  "Import the property sheet into every project that does not import it yet",
				Action: attachCommand,
			},
			{
				Name:      "build-report",
				Usage:     "Report projects whose output path is not the shared build directory",
				ArgsUsage: "[output-dir]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Also require the output file to exist in the build directory",
					},
				},
				Action: buildReportCommand,
			},
			{
				Name:  "watch",
				Usage: "Rescan whenever a project file changes",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "debounce",
						Usage: "Milliseconds to wait for more changes before rescanning (overrides config)",
					},
				},
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the refactoring tools to an MCP client over stdio",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a configuration file to the root",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "type",
								Usage: "File type: kdl or toml",
								Value: "kdl",
							},
							&cli.BoolFlag{
								Name:  "minimal",
								Usage: "Only write the most common settings",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
						Action: configInitCommand,
					},
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Check the configuration for errors",
						Action: configValidateCommand,
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Print version information",
				Action: versionCommand,
			},
		},
	}
}

func loggerFrom(c *cli.Context) *slog.Logger {
	if logger, ok := c.App.Metadata["logger"].(*slog.Logger); ok {
		return logger
	}
	return logging.Discard()
}
