package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Anthropic classifier clients.
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Anthropic factory.
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a new AnthropicClient.
func (f *Factory) CreateClassifier() (core.Classifier, error) {
	anthropicCfg := f.cfg.GetAnthropic()

	client := anthropic.NewClient(option.WithAPIKey(anthropicCfg.APIKey))

	return NewAnthropicClient(
		client,
		anthropicCfg.ModelName,
		anthropicCfg.MaxTokens,
		anthropicCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}
