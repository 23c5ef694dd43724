package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/email-triage/internal/adapters/llm"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient implements core.Classifier using Google Gemini.
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini classifier client.
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in Gemini response")
	}
	return text, nil
}

// Classify performs semantic classification of an email.
func (c *GeminiClient) Classify(ctx context.Context, from, subject, body string) (*core.EmailClassification, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ClassifyPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseClassification(text), nil
}

// ExtractActions pulls action items out of an email.
func (c *GeminiClient) ExtractActions(ctx context.Context, from, subject, body string) ([]core.ExtractedAction, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ExtractPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseActions(text), nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
