package llm

import (
	"context"
	"errors"
	"strings"

	"walletcsv/internal/assistant"
)

type OpenAI struct {
	cfg Config
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	Tools     []openAITool    `json:"tools,omitempty"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Converse(system string, history []assistant.Message, tools []assistant.ToolSpec) assistant.Conversation {
	messages := []openAIMessage{{Role: "system", Content: &system}}
	for _, msg := range history {
		content := msg.Content
		messages = append(messages, openAIMessage{Role: string(msg.Role), Content: &content})
	}
	specs := make([]openAITool, len(tools))
	for i, tool := range tools {
		specs[i] = openAITool{
			Type:     "function",
			Function: openAIFunction{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters},
		}
	}
	return &openAIConversation{client: o, messages: messages, tools: specs}
}

type openAIConversation struct {
	client   *OpenAI
	messages []openAIMessage
	tools    []openAITool
}

func (c *openAIConversation) Send(ctx context.Context) (assistant.Reply, error) {
	cfg := c.client.cfg
	var resp openAIResponse
	err := postJSON(ctx, cfg.HTTPClient, ProviderOpenAI, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + cfg.APIKey},
		openAIRequest{Model: cfg.Model, Messages: c.messages, Tools: c.tools, MaxTokens: maxTokens},
		&resp)
	if err != nil {
		return assistant.Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return assistant.Reply{}, errors.New("no response from openai")
	}

	msg := resp.Choices[0].Message
	c.messages = append(c.messages, msg)

	var reply assistant.Reply
	if msg.Content != nil {
		reply.Text = *msg.Content
	}
	for _, call := range msg.ToolCalls {
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return assistant.Reply{}, err
		}
		reply.Calls = append(reply.Calls, assistant.ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args})
	}
	return reply, nil
}

func (c *openAIConversation) Respond(results []assistant.ToolResult) {
	for _, result := range results {
		content := result.Content
		c.messages = append(c.messages, openAIMessage{Role: "tool", Content: &content, ToolCallID: result.CallID})
	}
}
