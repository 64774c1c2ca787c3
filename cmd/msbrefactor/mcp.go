package main

import (
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/msbrefactor/internal/mcp"
)

// mcpCommand serves the loaded engine over stdio. Logs go to stderr and the
// log file only, since stdout carries the protocol.
func mcpCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return mcp.NewServer(s.engine, s.logger).Start(ctx)
}
