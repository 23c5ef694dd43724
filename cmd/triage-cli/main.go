package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/email-triage/internal/adapters/cache"
	"github.com/mikey/email-triage/internal/adapters/store"
	"github.com/mikey/email-triage/internal/audit"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/logging"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/mikey/email-triage/internal/vip"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (openai, gemini, bedrock, anthropic)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Anthropic flags
	anthropicAPIKey    = flag.String("anthropic-api-key", "", "API key for Anthropic")
	anthropicModelName = flag.String("anthropic-model", "claude-sonnet-4-5-20250929", "Anthropic model name")

	// Engine flags
	userID        = flag.String("user", "cli-user", "User ID to predict for")
	llmThreshold  = flag.Float64("llm-threshold", 0.6, "Tier-1 confidence below which the LLM tier runs")
	vipSenders    = flag.String("vip", "", "Comma-separated list of VIP domains or addresses")
	skipLLM       = flag.Bool("skip-llm", false, "Run the Bayesian tier only")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := string(bodyBytes)

	email := &core.Email{
		ID:         uuid.New().String(),
		From:       from,
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now(),
		Headers:    make(map[string][]string),
	}
	for k, v := range msg.Header {
		email.Headers[k] = v
	}

	engine, classifier, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build prediction engine", zap.Error(err))
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))
	fmt.Printf("LLM fallback threshold: %.2f\n", cfg.GetFloat64("ensemble.llm_fallback_threshold"))

	startTime := time.Now()
	result, err := engine.Predict(context.Background(), email, *userID, false)
	if err != nil {
		logger.Fatal("Failed to predict", zap.Error(err))
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Action: %s\n", result.Final.Action)
	fmt.Printf("Confidence: %.4f\n", result.Final.Confidence)
	fmt.Printf("Requires approval: %t\n", result.Final.RequiresApproval)
	fmt.Printf("Reasoning: %s\n", result.Final.Reasoning)
	fmt.Printf("Weights: tier1=%.2f tier3=%.2f\n", result.Weights.Tier1, result.Weights.Tier3)
	if result.Tier3 != nil {
		fmt.Printf("LLM tier: %s (%.2f)\n", result.Tier3.Action, result.Tier3.Confidence)
	} else {
		fmt.Printf("LLM tier: not consulted\n")
	}
	fmt.Printf("Processing time: %v\n", duration)

	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM classifier", zap.Error(err))
		}
	}
}

// buildEngine assembles a single-shot prediction engine over an in-memory
// store. The sqlite and mysql stores are for the long-running daemon; a
// one-off CLI run has no history to persist.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*core.EnsemblePredictor, core.Classifier, error) {
	ec, err := cfg.GetEnsemble()
	if err != nil {
		return nil, nil, err
	}
	engineCfg := core.EnsembleConfig{
		LLMFallbackThreshold: ec.LLMFallbackThreshold,
		Weights: core.EnsembleWeights{
			Tier1: ec.WeightTier1,
			Tier2: ec.WeightTier2,
			Tier3: ec.WeightTier3,
		},
		AgreementBoost:       ec.AgreementBoost,
		SuggestionThreshold:  ec.SuggestionThreshold,
		AutoExecuteThreshold: ec.AutoExecuteThreshold,
		MaxConcurrentLLM:     ec.MaxConcurrentLLM,
		CacheTTL:             ec.CacheTTL,
		LLMTimeout:           ec.LLMTimeout,
	}

	var tier3 *core.Tier3Predictor
	var classifier core.Classifier
	if !*skipLLM {
		textProcessor := utils.NewTextProcessor(logger)
		llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
		classifier, err = llmFactory.CreateClassifier()
		if err != nil {
			return nil, nil, err
		}
		tier3 = core.NewTier3Predictor(classifier, logger, engineCfg.LLMTimeout)
	}

	bc := cfg.GetBehavior()
	triageStore := store.NewMemoryStore()
	behavior := core.NewBehaviorService(triageStore, triageStore, logger, bc.DecayLambda, bc.HistoryWindow)
	trust := core.NewTrustService(triageStore, logger, engineCfg.SuggestionThreshold)
	tier1 := core.NewTier1Predictor(logger, engineCfg.SuggestionThreshold, bc.DecayLambda, nil)
	queue := core.NewQueueService(triageStore, logger, 0)
	vipChecker := vip.NewChecker(cfg.GetStringSlice("vip.senders"), logger)
	activity := audit.NewZapActivityLogger(logger)

	engine := core.NewEnsemblePredictor(
		engineCfg,
		tier1,
		tier3,
		behavior,
		trust,
		queue,
		cache.NewMemoryCache(logger, engineCfg.CacheTTL, ec.CacheMaxEntries),
		vipChecker,
		triageStore,
		activity,
		logger,
	)
	return engine, classifier, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "anthropic":
		v.Set("anthropic.api_key", *anthropicAPIKey)
		v.Set("anthropic.model_name", *anthropicModelName)
		v.Set("anthropic.max_tokens", *maxTokens)
		v.Set("anthropic.max_body_size", *maxBodySize)
	}

	// Set engine tuning
	v.Set("ensemble.llm_fallback_threshold", *llmThreshold)
	v.Set("ensemble.weights.tier1", 0.5)
	v.Set("ensemble.weights.tier2", 0.1)
	v.Set("ensemble.weights.tier3", 0.4)
	v.Set("ensemble.agreement_boost", 0.15)
	v.Set("ensemble.suggestion_threshold", 0.4)
	v.Set("ensemble.auto_execute_threshold", 0.85)
	v.Set("ensemble.max_concurrent_llm", 3)
	v.Set("ensemble.cache_ttl", "5m")
	v.Set("ensemble.cache_max_entries", 100)
	v.Set("ensemble.llm_timeout", "20s")
	v.Set("behavior.decay_lambda", 0.1)
	v.Set("behavior.history_window", 500)

	// Set VIP senders
	if *vipSenders != "" {
		senders := strings.Split(*vipSenders, ",")
		for i, s := range senders {
			senders[i] = strings.TrimSpace(s)
		}
		v.Set("vip.senders", senders)
	} else {
		v.Set("vip.senders", []string{})
	}

	return config.NewFromViper(v)
}
