package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const DefaultMaxTurns = 15

const maxTurnsReply = "Reached maximum tool call iterations."

type AgentConfig struct {
	MaxTurns int
}

// Agent runs the tool-calling loop for one chat message at a time.
type Agent struct {
	provider Provider
	executor *Executor
	maxTurns int
}

type ChatResult struct {
	Reply string `json:"reply"`
	// Status holds one RoleStatus message per tool that ran.
	Status []Message `json:"status"`
}

func NewAgent(provider Provider, executor *Executor, cfg AgentConfig) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if executor == nil {
		return nil, errors.New("tool executor is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Agent{provider: provider, executor: executor, maxTurns: cfg.MaxTurns}, nil
}

// Chat answers the last user message in history. Status messages in history
// are dropped before the model sees it. onStatus may be nil.
func (a *Agent) Chat(ctx context.Context, session *Session, history []Message, onStatus func(string)) (ChatResult, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}
	chainCount := 0
	if chains, err := a.executor.chains.Chains(ctx); err == nil {
		chainCount = len(chains)
	} else {
		slog.Warn("chain directory unavailable for prompt", "err", err)
	}

	conversation := a.provider.Converse(SystemPrompt(session.State(), chainCount), modelHistory(history), Tools())
	var result ChatResult
	for range a.maxTurns {
		reply, err := conversation.Send(ctx)
		if err != nil {
			return result, fmt.Errorf("%s: %w", a.provider.Name(), err)
		}
		if len(reply.Calls) == 0 || reply.Final {
			result.Reply = reply.Text
			if result.Reply == "" {
				result.Reply = "Done."
			}
			return result, nil
		}

		results := make([]ToolResult, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			status := fmt.Sprintf("Running %s...", call.Name)
			onStatus(status)
			result.Status = append(result.Status, Message{Role: RoleStatus, Content: status})

			slog.Debug("running tool", "session", session.ID, "tool", call.Name)
			results = append(results, ToolResult{
				CallID:  call.ID,
				Content: a.executor.Execute(ctx, session, call, onStatus),
			})
		}
		conversation.Respond(results)
	}
	result.Reply = maxTurnsReply
	return result, nil
}

func modelHistory(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == RoleStatus || msg.Content == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// WithConfirmer returns a copy of a whose tools are confirmed by c.
func (a *Agent) WithConfirmer(c Confirmer) *Agent {
	clone := *a
	clone.executor = a.executor.WithConfirmer(c)
	return &clone
}
