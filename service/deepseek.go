package service

import (
	"context"
	"math"
	"strings"

	"github.com/arjunpratapdas/contractiq/config"
	openai "github.com/sashabaranov/go-openai"
)

// DeepSeekProvider is the provider name reported for DeepSeek generations
const DeepSeekProvider = "deepseek"

// DeepSeekGenerator calls an OpenAI-compatible chat completions endpoint
type DeepSeekGenerator struct {
	client *openai.Client
	model  string
	opts   GenerationOptions
}

func NewDeepSeekGenerator(cfg config.ProviderConfig, opts GenerationOptions) *DeepSeekGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		clientCfg.HTTPClient = opts.HTTPClient
	}
	return &DeepSeekGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		opts:   opts,
	}
}

func (g *DeepSeekGenerator) Provider() string { return DeepSeekProvider }

// Generate returns the content of the first choice
func (g *DeepSeekGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, capture := withCapture(ctx)

	// the request field is omitempty, so an explicit zero has to be nudged
	temperature := g.opts.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   g.opts.MaxOutputTokens,
	})
	if err != nil {
		return "", classifyProviderError(DeepSeekProvider, capture, err)
	}

	if len(resp.Choices) == 0 {
		return "", &MalformedResponseError{Service: DeepSeekProvider, Reason: "no choices"}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &MalformedResponseError{Service: DeepSeekProvider, Reason: "choice content is empty"}
	}
	return text, nil
}
