package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hrygo/marketsense/plugin/ai"
)

// Agent is one specialized worker in the pipeline. Invoke never returns a
// Go error: gateway failures come back as an error-envelope Result.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, prompt string, ectx *ExecutionContext) *Result
}

// RunnerConfig describes one agent kind.
type RunnerConfig struct {
	Name         string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	UseTools     bool
}

// Runner is the base agent: it builds the message sequence, calls the
// completion gateway, resolves tool calls, and parses the reply.
type Runner struct {
	cfg     RunnerConfig
	gateway ai.Gateway
	tools   *ToolExecutor
}

var _ Agent = (*Runner)(nil)

// NewRunner creates an agent runner. tools may be nil when cfg.UseTools is
// false.
func NewRunner(cfg RunnerConfig, gateway ai.Gateway, tools *ToolExecutor) *Runner {
	return &Runner{cfg: cfg, gateway: gateway, tools: tools}
}

func (r *Runner) Name() string { return r.cfg.Name }

// Invoke runs one agent turn.
func (r *Runner) Invoke(ctx context.Context, prompt string, ectx *ExecutionContext) *Result {
	messages := r.buildMessages(prompt, ectx)

	completion, err := r.complete(ctx, messages, r.cfg.UseTools)
	if err != nil {
		slog.Error("Agent: gateway call failed", "agent", r.cfg.Name, "error", err)
		return errorResult(r.cfg.Name, errorTypeOf(err), err)
	}

	if len(completion.ToolCalls) > 0 && r.cfg.UseTools {
		return r.resolveToolCalls(ctx, messages, completion)
	}
	return resultFromContent(completion.Text)
}

func (r *Runner) buildMessages(prompt string, ectx *ExecutionContext) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: r.cfg.SystemPrompt},
	}
	if ectx != nil && len(ectx.Knowledge) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: knowledgeContext(ectx.Knowledge),
		})
	}
	if ectx != nil {
		for _, turn := range ectx.History {
			role := turn.Role
			if role == "" {
				role = openai.ChatMessageRoleUser
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
		}
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

func knowledgeContext(docs []KnowledgeDoc) string {
	var b strings.Builder
	b.WriteString("Reference knowledge:\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", doc.Title, doc.Body)
	}
	return b.String()
}

func (r *Runner) complete(ctx context.Context, messages []openai.ChatCompletionMessage, withTools bool) (*ai.Completion, error) {
	req := ai.CompletionRequest{
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	if withTools {
		req.Tools = toolsForAgent(r.cfg.Name)
		req.ToolChoice = "auto"
	}
	return r.gateway.Complete(ctx, req)
}

// resolveToolCalls executes the requested tools, feeds the results back,
// and asks for a JSON-only answer. Models sometimes keep probing after
// being told to stop, so the loop tolerates further tool-call rounds until
// the model answers with text.
func (r *Runner) resolveToolCalls(ctx context.Context, messages []openai.ChatCompletionMessage, completion *ai.Completion) *Result {
	for len(completion.ToolCalls) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			arguments := decodeToolArguments(call.Function.Arguments)
			slog.Info("Agent: executing tool", "agent", r.cfg.Name, "tool", call.Function.Name)
			result := r.tools.Execute(call.Function.Name, arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    stringify(result),
			})
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Respond with the final answer as a single JSON object only.",
		})

		next, err := r.complete(ctx, messages, false)
		if err != nil {
			slog.Error("Agent: gateway call failed after tools", "agent", r.cfg.Name, "error", err)
			return errorResult(r.cfg.Name, errorTypeOf(err), err)
		}
		completion = next
	}
	return resultFromContent(completion.Text)
}

func decodeToolArguments(raw string) map[string]any {
	if outcome := parseModelJSON(raw); outcome.Kind == ParsedObject {
		return outcome.Object
	}
	return map[string]any{}
}

func errorTypeOf(err error) string {
	var classified *ai.ClassifiedError
	if errors.As(err, &classified) && classified.IsTransient() {
		return "gateway_transient_error"
	}
	return "gateway_error"
}
