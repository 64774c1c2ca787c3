package mcp

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createJSONResponse wraps data as the text content of a tool result.
func createJSONResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// errorResponse is the body of a failed tool call.
type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Operation string `json:"operation"`
}

// createErrorResponse reports err inside the result with IsError set, so the
// client sees the failure and can correct its call.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	response, marshalErr := createJSONResponse(errorResponse{
		Success:   false,
		Error:     err.Error(),
		Operation: operation,
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}
