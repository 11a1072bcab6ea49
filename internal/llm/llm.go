// Package llm talks to an OpenAI compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client turns a prompt into a completion.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("model returned no choices")

type Config struct {
	APIKey      string
	BaseURL     string // empty means api.openai.com
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type OpenAI struct {
	client  *openai.Client
	model   string
	temp    float32
	timeout time.Duration
	log     *zap.Logger
}

func NewOpenAI(cfg Config, log *zap.Logger) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
		log:     log,
	}
}

// Complete sends prompt as a single system message and returns the text of
// the first choice.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	temp := o.temp
	if temp == 0 {
		// zero is dropped by omitempty and the API would fall back to 1
		temp = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
		},
		Temperature: temp,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: %w", ErrNoChoices)
	}

	o.log.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}
