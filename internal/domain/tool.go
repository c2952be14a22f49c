package domain

import (
	"encoding/json"
	"time"
)

// ParamType is the primitive type of a tool parameter
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// ToolParam describes one named parameter of a tool
type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Enum        []string
	Required    bool
}

// ToolDefinition is a catalog entry offered to the model
type ToolDefinition struct {
	Name        string
	Description string
	Params      []ToolParam
	Mutating    bool
}

// Param returns the parameter with the given name
func (d ToolDefinition) Param(name string) (ToolParam, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ToolParam{}, false
}

// Schema renders the parameters as a JSON schema object
func (d ToolDefinition) Schema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	required := []string{}
	for _, p := range d.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ToolInvocation is the audit record of one executed tool call
type ToolInvocation struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	UserID      string          `json:"user_id,omitempty"`
	ToolName    string          `json:"tool_name"`
	Arguments   json.RawMessage `json:"arguments"`
	OK          bool            `json:"ok"`
	FailureKind string          `json:"failure_kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	CreatedAt   time.Time       `json:"created_at"`
}
