package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds the completion provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.deepseek.com",
		APIKey:     "",
		ChatModel:  "deepseek-chat",
		MaxRetries: 3,
		Timeout:    60 * time.Second,
	}
}

// CompletionRequest is one round trip to the chat-completion API.
type CompletionRequest struct {
	Messages    []openai.ChatCompletionMessage
	Temperature float32
	MaxTokens   int
	Tools       []openai.Tool
	ToolChoice  string // "auto" or "none"; empty disables tool use
}

// Completion is the structured result of a completion request.
type Completion struct {
	Text      string
	ToolCalls []openai.ToolCall
}

// Gateway sends role-tagged messages to a completion API and returns
// structured text and/or tool-call requests.
type Gateway interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Provider is the go-openai backed Gateway implementation.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new completion provider.
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "deepseek-chat"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Complete performs a chat completion with bounded retry on transient failures.
func (p *Provider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 && req.ToolChoice != "" && req.ToolChoice != "none" {
		chatReq.Tools = req.Tools
		chatReq.ToolChoice = req.ToolChoice
	}

	var result *Completion
	err := p.doWithRetry(ctx, func() error {
		start := time.Now()
		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}

		choice := resp.Choices[0]
		result = &Completion{
			Text:      choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		}
		slog.Debug("completion succeeded",
			"model", resp.Model,
			"tokens", resp.Usage.TotalTokens,
			"tool_calls", len(choice.Message.ToolCalls),
			"latency_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff, retrying transient errors only.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		classified := ClassifyError(err)
		if !classified.IsTransient() {
			return classified
		}
		if attempt < p.config.MaxRetries-1 {
			waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			slog.Debug("completion request failed, retrying",
				"attempt", attempt+1,
				"wait_time", waitTime,
				"error", err)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return ClassifyError(lastErr)
}
