package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/msbrefactor/internal/logging"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
	"github.com/standardbeagle/msbrefactor/internal/version"
)

type toolHandler func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Server exposes a loaded engine as MCP tools over stdio. Mutating tools
// change the in-memory projects only; the save tool writes them.
type Server struct {
	// mu serializes tool calls; the engine is not safe for concurrent use.
	mu       sync.Mutex
	engine   *refactor.Engine
	logger   *slog.Logger
	server   *mcp.Server
	handlers map[string]toolHandler
}

// NewServer wraps an engine that already has its sheet and directory loaded.
func NewServer(engine *refactor.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		engine:   engine,
		logger:   logger,
		handlers: make(map[string]toolHandler),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "msbrefactor",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// addTool registers a tool and keeps its handler for direct dispatch.
func (s *Server) addTool(tool *mcp.Tool, handler toolHandler) {
	name := tool.Name
	wrapped := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.recoverFromPanic(name, func() (*mcp.CallToolResult, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return handler(ctx, req)
		})
	}
	s.handlers[name] = wrapped
	s.server.AddTool(tool, wrapped)
}

// recoverFromPanic turns a panic or an error from a handler into an error
// result the client can read, instead of a protocol failure.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in tool handler", "tool", operation, "panic", r, "stack", string(debug.Stack()))
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.logger.Warn("tool failed", "tool", operation, "error", err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// ToolNames lists the registered tools.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Start serves requests on stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting MCP server", "root", s.engine.Root(), "projects", len(s.engine.Projects()))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
