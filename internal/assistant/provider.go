// Package assistant drives the chat mode: an LLM is given a small set of
// tools that call into the exporter, and the loop runs them until the model
// answers in plain text.
package assistant

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleStatus marks progress lines shown to the user. They are never sent
	// to the model.
	RoleStatus Role = "status"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes a tool to the model. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type ToolResult struct {
	CallID  string
	Content string
}

// Reply is one model turn. Final is set when the model declared the turn
// over even if it also requested tools.
type Reply struct {
	Text  string
	Calls []ToolCall
	Final bool
}

// Conversation holds the provider-specific message history of one chat
// request.
type Conversation interface {
	Send(ctx context.Context) (Reply, error)
	// Respond appends the results of the calls in the last reply.
	Respond(results []ToolResult)
}

type Provider interface {
	Name() string
	Converse(system string, history []Message, tools []ToolSpec) Conversation
}
