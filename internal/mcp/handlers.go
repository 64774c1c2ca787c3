package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/msbrefactor/internal/display"
	"github.com/standardbeagle/msbrefactor/internal/refactor"
)

type nameParams struct {
	Name string `json:"name"`
}

type namesParams struct {
	Names []string `json:"names"`
}

type valueParams struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	AllConfigs bool   `json:"all_configs"`
}

type listParams struct {
	MinCount int `json:"min_count"`
}

type allConfigsParams struct {
	AllConfigs bool `json:"all_configs"`
}

type saveParams struct {
	Force bool `json:"force"`
}

type buildReportParams struct {
	OutputDir string `json:"output_dir"`
	Verify    bool   `json:"verify"`
}

// changesResponse is returned by every in-memory mutation.
type changesResponse struct {
	Changes []display.ChangeView `json:"changes"`
	Unsaved bool                 `json:"unsaved"`
}

type globalResponse struct {
	Global display.GlobalChangeView `json:"global"`
	Scan   display.ScanView         `json:"scan"`
}

// parseParams decodes the tool arguments. Missing arguments decode as the
// zero value.
func parseParams(req *mcp.CallToolRequest, v any) error {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("must provide 'name'")
	}
	return nil
}

func (s *Server) root() string { return s.engine.Root() }

func (s *Server) scanView() display.ScanView {
	return display.ScanView{
		Root:           s.root(),
		Discovered:     s.engine.Discovered(),
		Loaded:         s.engine.Loaded(),
		Properties:     s.engine.Index().Len(),
		Configurations: s.engine.Index().ConfigurationAxis(),
		Platforms:      s.engine.Index().PlatformAxis(),
	}
}

func (s *Server) changes(changes []refactor.Change) (*mcp.CallToolResult, error) {
	return createJSONResponse(changesResponse{
		Changes: display.NewChangeViews(changes, s.root()),
		Unsaved: true,
	})
}

func (s *Server) handleScan(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.engine.LoadDirectory(ctx, s.root())
	if err != nil {
		return nil, err
	}
	return createJSONResponse(display.NewScanView(s.root(), result, s.engine.Index()))
}

func (s *Server) handleListProperties(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params listParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	return createJSONResponse(display.NewIndexView(s.engine.Index().References(), s.root(), params.MinCount))
}

func (s *Server) handleShowProperty(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params nameParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := requireName(params.Name); err != nil {
		return nil, err
	}
	ref, err := s.engine.Index().Lookup(params.Name)
	if err != nil {
		return nil, err
	}
	return createJSONResponse(display.NewPropertyView(ref, s.root()))
}

func (s *Server) handleMoveProperty(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params valueParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := requireName(params.Name); err != nil {
		return nil, err
	}
	return s.changes([]refactor.Change{s.engine.Move(params.Name, params.Value)})
}

func (s *Server) handleRemoveProperties(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params namesParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Names) == 0 {
		return nil, errors.New("must provide 'names' with at least one property")
	}
	return s.changes(s.engine.RemoveMany(params.Names))
}

func (s *Server) handleMoveValue(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params valueParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := requireName(params.Name); err != nil {
		return nil, err
	}
	ref, err := s.engine.Index().Lookup(params.Name)
	if err != nil {
		return nil, err
	}
	group, err := ref.FindValue(params.Value)
	if err != nil {
		return nil, err
	}
	if params.AllConfigs {
		return s.changes([]refactor.Change{s.engine.MoveValueAllConfigs(group)})
	}
	return s.changes([]refactor.Change{s.engine.MoveValue(group)})
}

func (s *Server) handleRemoveValue(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params valueParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := requireName(params.Name); err != nil {
		return nil, err
	}
	ref, err := s.engine.Index().Lookup(params.Name)
	if err != nil {
		return nil, err
	}
	group, err := ref.FindValue(params.Value)
	if err != nil {
		return nil, err
	}
	return s.changes([]refactor.Change{s.engine.RemoveValue(group)})
}

func (s *Server) handleRemoveXML(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params namesParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Names) == 0 {
		return nil, errors.New("must provide 'names' with at least one property")
	}
	return s.changes(s.engine.RemoveXml(params.Names))
}

func (s *Server) handleRemoveSheetProperties(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params allConfigsParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.AllConfigs {
		return s.changes(s.engine.RemoveAllPropertiesFromProjects())
	}
	return s.changes(s.engine.RemovePropertiesFromProjects())
}

func (s *Server) handleSetGlobal(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params valueParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := requireName(params.Name); err != nil {
		return nil, err
	}
	change := s.engine.SetGlobalProperty(params.Name, params.Value)
	return createJSONResponse(globalResponse{
		Global: display.NewGlobalChangeView(change, s.root()),
		Scan:   s.scanView(),
	})
}

func (s *Server) handleSave(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params saveParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	return createJSONResponse(display.NewSaveView(s.engine.SaveAll(params.Force), s.root()))
}

func (s *Server) handleClean(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(display.NewCleanupView(s.engine.RemoveEmptyXMLElements(), s.root()))
}

func (s *Server) handleAttachSheet(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(display.NewSaveView(s.engine.AttachImportForAll(), s.root()))
}

func (s *Server) handleBuildReport(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params buildReportParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.OutputDir) == "" {
		return nil, errors.New("must provide 'output_dir'")
	}
	report := s.engine.DefineBuild(params.OutputDir, params.Verify)
	return createJSONResponse(display.NewBuildReportView(report, s.root()))
}
