package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/arjunpratapdas/contractiq/config"
	"google.golang.org/genai"
)

// GeminiProvider is the provider name reported for Gemini generations
const GeminiProvider = "gemini"

// safetyCategories are blocked at medium probability and above
var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// GeminiGenerator calls the generative-language generateContent API
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiGenerator(ctx context.Context, cfg config.ProviderConfig, opts GenerationOptions) (*GeminiGenerator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	safety := make([]*genai.SafetySetting, 0, len(safetyCategories))
	for _, category := range safetyCategories {
		safety = append(safety, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}

	return &GeminiGenerator{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(opts.Temperature),
			MaxOutputTokens:   int32(opts.MaxOutputTokens),
			SafetySettings:    safety,
		},
	}, nil
}

func (g *GeminiGenerator) Provider() string { return GeminiProvider }

// Generate returns the text of the first part of the first candidate
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, capture := withCapture(ctx)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", classifyProviderError(GeminiProvider, capture, err)
	}

	if len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = fmt.Sprintf("no candidates, prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", &MalformedResponseError{Service: GeminiProvider, Reason: reason}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0] == nil {
		return "", &MalformedResponseError{Service: GeminiProvider, Reason: "candidate has no content parts"}
	}
	text := candidate.Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &MalformedResponseError{Service: GeminiProvider, Reason: "candidate text is empty"}
	}
	return text, nil
}
