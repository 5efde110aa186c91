package llm

import (
	"context"
	"encoding/json"
	"strings"

	"walletcsv/internal/assistant"
)

const anthropicVersion = "2023-06-01"

type Anthropic struct {
	cfg Config
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicToolResult struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

type anthropicResponse struct {
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
}

func (a *Anthropic) Converse(system string, history []assistant.Message, tools []assistant.ToolSpec) assistant.Conversation {
	messages := make([]anthropicMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
	}
	specs := make([]anthropicTool, len(tools))
	for i, tool := range tools {
		specs[i] = anthropicTool{Name: tool.Name, Description: tool.Description, InputSchema: tool.Parameters}
	}
	return &anthropicConversation{client: a, system: system, messages: messages, tools: specs}
}

type anthropicConversation struct {
	client   *Anthropic
	system   string
	messages []anthropicMessage
	tools    []anthropicTool
}

func (c *anthropicConversation) Send(ctx context.Context) (assistant.Reply, error) {
	cfg := c.client.cfg
	var resp anthropicResponse
	err := postJSON(ctx, cfg.HTTPClient, ProviderAnthropic, strings.TrimRight(cfg.BaseURL, "/")+"/messages",
		map[string]string{"x-api-key": cfg.APIKey, "anthropic-version": anthropicVersion},
		anthropicRequest{Model: cfg.Model, MaxTokens: maxTokens, System: c.system, Messages: c.messages, Tools: c.tools},
		&resp)
	if err != nil {
		return assistant.Reply{}, err
	}

	// The assistant turn is echoed back verbatim, unknown block types included.
	c.messages = append(c.messages, anthropicMessage{Role: "assistant", Content: resp.Content})

	var (
		reply assistant.Reply
		texts []string
	)
	for _, raw := range resp.Content {
		var block anthropicBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			return assistant.Reply{}, err
		}
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			reply.Calls = append(reply.Calls, assistant.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	reply.Text = strings.Join(texts, "\n")
	reply.Final = resp.StopReason == "end_turn"
	return reply, nil
}

func (c *anthropicConversation) Respond(results []assistant.ToolResult) {
	blocks := make([]anthropicToolResult, len(results))
	for i, result := range results {
		blocks[i] = anthropicToolResult{Type: "tool_result", ToolUseID: result.CallID, Content: result.Content}
	}
	c.messages = append(c.messages, anthropicMessage{Role: "user", Content: blocks})
}
