package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mikey/email-triage/internal/adapters/llm"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"go.uber.org/zap"
)

// AnthropicClient implements core.Classifier using the Anthropic API.
type AnthropicClient struct {
	client        anthropic.Client
	modelName     string
	maxTokens     int64
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnthropicClient creates a new Anthropic classifier client.
func NewAnthropicClient(
	client anthropic.Client,
	modelName string,
	maxTokens int,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *AnthropicClient {
	return &AnthropicClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     int64(maxTokens),
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: llm.ClassifySystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create message with Anthropic: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

// Classify performs semantic classification of an email.
func (c *AnthropicClient) Classify(ctx context.Context, from, subject, body string) (*core.EmailClassification, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ClassifyPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseClassification(text), nil
}

// ExtractActions pulls action items out of an email.
func (c *AnthropicClient) ExtractActions(ctx context.Context, from, subject, body string) ([]core.ExtractedAction, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ExtractPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseActions(text), nil
}
