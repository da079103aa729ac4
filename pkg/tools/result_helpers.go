package tools

import "time"

func successResult(toolName, content string, executionTime time.Duration, metadata map[string]interface{}) ToolResult {
	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      toolName,
		ExecutionTime: executionTime,
		Metadata:      metadata,
	}
}

func errorResult(toolName, errorMsg string) ToolResult {
	if errorMsg == "" {
		errorMsg = "unknown error"
	}
	return ToolResult{
		Success:  false,
		Error:    errorMsg,
		ToolName: toolName,
	}
}

// Schema renders a tool's parameters as a JSON schema object, the form
// every provider's function-calling API expects.
func (info ToolInfo) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(info.Parameters))
	var required []string

	for _, p := range info.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
