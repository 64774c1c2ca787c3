package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/indexing"
)

// watchCommand prints a scan summary, then rescans and prints it again after
// every debounced batch of project file changes, until interrupted.
func watchCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if err := printScan(s); err != nil {
		return err
	}

	debounce := time.Duration(s.cfg.Watch.DebounceMs) * time.Millisecond
	if ms := c.Int("debounce"); ms > 0 {
		debounce = time.Duration(ms) * time.Millisecond
	}

	watcher, err := indexing.NewFileWatcher(indexing.NewFileScanner(scanOptions(s.cfg, s.logger)), debounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The engine is not safe for concurrent use, so batches are handed to
	// this goroutine instead of rescanning on the watcher's timer.
	batches := make(chan []indexing.FileEvent, 1)
	watcher.SetCallback(func(events []indexing.FileEvent) {
		select {
		case batches <- events:
		default:
			// A rescan is already queued and will see these changes too.
		}
	})
	if err := watcher.Start(s.root()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.root(), err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(s.out, "%s %s (Ctrl+C to stop)\n", display.Green("Watching"), s.root())
	for {
		select {
		case <-ctx.Done():
			stats := watcher.GetStats()
			s.logger.Info("watch stopped", "events", stats.EventsProcessed, "errors", stats.ErrorCount)
			return nil
		case events := <-batches:
			s.logger.Info("project files changed, rescanning", "events", len(events))
			if err := rescan(c, s); err != nil {
				s.logger.Error("rescan failed", "error", err)
				continue
			}
			if err := printScan(s); err != nil {
				return err
			}
		}
	}
}

// rescan reloads the sheet from disk and scans the root again.
func rescan(c *cli.Context, s *session) error {
	engine, scan, err := loadEngine(c.Context, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.engine, s.scan = engine, scan
	return nil
}

func printScan(s *session) error {
	view := display.NewScanView(s.root(), s.scan, s.engine.Index())
	return s.emit(view, func() (string, error) { return display.RenderScan(view) })
}
