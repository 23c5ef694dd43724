package openai

import (
	"context"
	"fmt"

	"github.com/mikey/email-triage/internal/adapters/llm"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient implements core.Classifier using the OpenAI chat API.
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI classifier client.
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.ClassifySystem},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// Classify performs semantic classification of an email.
func (c *OpenAIClient) Classify(ctx context.Context, from, subject, body string) (*core.EmailClassification, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ClassifyPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseClassification(text), nil
}

// ExtractActions pulls action items out of an email.
func (c *OpenAIClient) ExtractActions(ctx context.Context, from, subject, body string) ([]core.ExtractedAction, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	text, err := c.complete(ctx, llm.ExtractPrompt(from, subject, processedBody))
	if err != nil {
		return nil, err
	}
	return llm.ParseActions(text), nil
}
