package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// AnthropicConfig represents the configuration for Anthropic
type AnthropicConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	MaxBodySize int
}

// EnsembleConfig represents the prediction engine tuning surface
type EnsembleConfig struct {
	LLMFallbackThreshold float64
	WeightTier1          float64
	WeightTier2          float64
	WeightTier3          float64
	AgreementBoost       float64
	SuggestionThreshold  float64
	AutoExecuteThreshold float64
	MaxConcurrentLLM     int
	CacheTTL             time.Duration
	CacheMaxEntries      int
	LLMTimeout           time.Duration
}

// BehaviorConfig represents the sender behavior model configuration
type BehaviorConfig struct {
	DecayLambda   float64
	HistoryWindow int
}

// StoreConfig represents the persistence configuration
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// QueueConfig represents the action queue configuration
type QueueConfig struct {
	ItemTTL             time.Duration
	ExpirySweepInterval time.Duration
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetAnthropic returns the Anthropic configuration
func (c *Config) GetAnthropic() AnthropicConfig {
	return AnthropicConfig{
		APIKey:      c.GetString("anthropic.api_key"),
		ModelName:   c.GetString("anthropic.model_name"),
		MaxTokens:   c.GetInt("anthropic.max_tokens"),
		MaxBodySize: c.GetInt("anthropic.max_body_size"),
	}
}

// GetEnsemble returns the ensemble configuration
func (c *Config) GetEnsemble() (EnsembleConfig, error) {
	cacheTTL, err := c.GetDuration("ensemble.cache_ttl")
	if err != nil {
		return EnsembleConfig{}, err
	}
	llmTimeout, err := c.GetDuration("ensemble.llm_timeout")
	if err != nil {
		return EnsembleConfig{}, err
	}
	return EnsembleConfig{
		LLMFallbackThreshold: c.GetFloat64("ensemble.llm_fallback_threshold"),
		WeightTier1:          c.GetFloat64("ensemble.weights.tier1"),
		WeightTier2:          c.GetFloat64("ensemble.weights.tier2"),
		WeightTier3:          c.GetFloat64("ensemble.weights.tier3"),
		AgreementBoost:       c.GetFloat64("ensemble.agreement_boost"),
		SuggestionThreshold:  c.GetFloat64("ensemble.suggestion_threshold"),
		AutoExecuteThreshold: c.GetFloat64("ensemble.auto_execute_threshold"),
		MaxConcurrentLLM:     c.GetInt("ensemble.max_concurrent_llm"),
		CacheTTL:             cacheTTL,
		CacheMaxEntries:      c.GetInt("ensemble.cache_max_entries"),
		LLMTimeout:           llmTimeout,
	}, nil
}

// GetBehavior returns the behavior model configuration
func (c *Config) GetBehavior() BehaviorConfig {
	return BehaviorConfig{
		DecayLambda:   c.GetFloat64("behavior.decay_lambda"),
		HistoryWindow: c.GetInt("behavior.history_window"),
	}
}

// GetStore returns the persistence configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetQueue returns the action queue configuration
func (c *Config) GetQueue() (QueueConfig, error) {
	itemTTL, err := c.GetDuration("queue.item_ttl")
	if err != nil {
		return QueueConfig{}, err
	}
	sweep, err := c.GetDuration("queue.expiry_sweep_frequency")
	if err != nil {
		return QueueConfig{}, err
	}
	return QueueConfig{ItemTTL: itemTTL, ExpirySweepInterval: sweep}, nil
}
