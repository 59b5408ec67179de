package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createJSONResponse wraps data as a single JSON text block
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result with IsError set,
// so the calling model sees the failure instead of a protocol error
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	return createSmartErrorResponse(operation, err, nil)
}

// createSmartErrorResponse adds suggestions and caller context to an error result
func createSmartErrorResponse(operation string, err error, context map[string]interface{}) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if suggestions := generateErrorSuggestions(operation, err); len(suggestions) > 0 {
		errorData["suggestions"] = suggestions
	}
	if len(context) > 0 {
		errorData["context"] = context
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

func generateErrorSuggestions(operation string, err error) []string {
	msg := err.Error()
	var suggestions []string

	switch {
	case strings.Contains(msg, "invalid arguments"):
		suggestions = append(suggestions, "Arguments must be a JSON object matching the tool's input schema")
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "cannot find"):
		suggestions = append(suggestions, "Pass an absolute path or a file:// URI inside an indexed root")
	case strings.Contains(msg, "not a file URI"):
		suggestions = append(suggestions, "Only file:// URIs and plain filesystem paths are supported")
	}

	switch operation {
	case "definition", "hover":
		if strings.Contains(msg, "line") || strings.Contains(msg, "column") {
			suggestions = append(suggestions, "line and column are 0-based; column counts UTF-16 code units")
		}
	case "workspace_symbol":
		suggestions = append(suggestions, "An empty query lists every indexed declaration")
	case "reindex":
		suggestions = append(suggestions, "Check index_status for the last rebuild error and the discovery strategy per root")
	}
	return suggestions
}
