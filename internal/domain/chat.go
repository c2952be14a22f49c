package domain

import "time"

// Role is the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one append-only entry of the conversation log
type Message struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id,omitempty"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Sources    []Source  `json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryMessage is a prior turn supplied by the client
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Source is a citation attached to an assistant answer
type Source struct {
	DocumentID string  `json:"fileId"`
	ChunkID    string  `json:"chunkId,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// RetrievalResult is a ranked context snippet for one turn
type RetrievalResult struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Content    string
	Similarity float64
	Preview    string
}

// Source converts the result into citation metadata
func (r RetrievalResult) Source() Source {
	return Source{
		DocumentID: r.DocumentID,
		ChunkID:    r.ChunkID,
		Filename:   r.Filename,
		Similarity: r.Similarity,
		Preview:    r.Preview,
	}
}

// Credentials are external credentials carried by a single turn.
// They are handed to tools and never persisted.
type Credentials struct {
	GoogleAccessToken string `json:"googleAccessToken,omitempty"`
}

// ChatRequest is the body of the chat entry point
type ChatRequest struct {
	Message             string           `json:"message" binding:"required"`
	History             []HistoryMessage `json:"history,omitempty"`
	UseRetrieval        *bool            `json:"useRetrieval,omitempty"`
	EnableTools         *bool            `json:"enableTools,omitempty"`
	UserID              string           `json:"userId,omitempty"`
	UserEmail           string           `json:"userEmail,omitempty"`
	ExternalCredentials *Credentials     `json:"externalCredentials,omitempty"`
}

// ToolUse reports one executed tool back to the caller
type ToolUse struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result any            `json:"result"`
}

// ChatResponse is the answer of the chat entry point
type ChatResponse struct {
	Message    string    `json:"message"`
	Sources    []Source  `json:"sources"`
	ToolsUsed  []ToolUse `json:"toolsUsed"`
	HasContext bool      `json:"hasContext"`
}
