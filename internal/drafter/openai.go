package drafter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds one drafting call.
const DefaultTimeout = 60 * time.Second

// Config configures an OpenAI-compatible drafting endpoint.
type Config struct {
	Endpoint    string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float32
}

// OpenAIDrafter drafts fixes through an OpenAI-compatible chat
// completion API, such as a local inference server.
type OpenAIDrafter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	temp    float32
	logger  *slog.Logger
}

// NewOpenAIDrafter creates a drafter for cfg.
func NewOpenAIDrafter(cfg Config) (*OpenAIDrafter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("drafter model is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := slog.Default().With("component", "drafter")
	logger.Info("initializing drafter", "endpoint", clientCfg.BaseURL, "model", cfg.Model)

	return &OpenAIDrafter{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		temp:    cfg.Temperature,
		logger:  logger,
	}, nil
}

// Draft implements Drafter.
func (o *OpenAIDrafter) Draft(ctx context.Context, req Request) (*Draft, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	chat := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	}

	o.logger.Debug("requesting draft", "file", req.Diagnostic.File, "line", req.Diagnostic.Line, "code", req.Diagnostic.Code)

	resp, err := o.client.CreateChatCompletion(callCtx, chat)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrNoProposal)
	}

	o.logger.Debug("received draft", "finish_reason", resp.Choices[0].FinishReason)
	return ParseResponse(resp.Choices[0].Message.Content)
}
