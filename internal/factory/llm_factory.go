package factory

import (
	"fmt"

	"github.com/mikey/email-triage/internal/adapters/anthropic"
	"github.com/mikey/email-triage/internal/adapters/bedrock"
	"github.com/mikey/email-triage/internal/adapters/gemini"
	"github.com/mikey/email-triage/internal/adapters/openai"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates classifier clients.
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory.
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a classifier client based on the configuration.
func (f *LLMFactory) CreateClassifier() (core.Classifier, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "anthropic":
		return anthropic.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
