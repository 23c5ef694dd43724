package config

import (
	"testing"
	"time"
)

func TestEnsembleDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	ec, err := cfg.GetEnsemble()
	if err != nil {
		t.Fatalf("GetEnsemble failed: %v", err)
	}
	if ec.LLMFallbackThreshold != 0.6 {
		t.Errorf("llm_fallback_threshold = %v, want 0.6", ec.LLMFallbackThreshold)
	}
	if ec.WeightTier1 != 0.5 || ec.WeightTier2 != 0.1 || ec.WeightTier3 != 0.4 {
		t.Errorf("weights = %v/%v/%v, want 0.5/0.1/0.4", ec.WeightTier1, ec.WeightTier2, ec.WeightTier3)
	}
	if ec.MaxConcurrentLLM != 3 {
		t.Errorf("max_concurrent_llm = %d, want 3", ec.MaxConcurrentLLM)
	}
	if ec.CacheTTL != 5*time.Minute {
		t.Errorf("cache_ttl = %v, want 5m", ec.CacheTTL)
	}
	if ec.CacheMaxEntries != 100 {
		t.Errorf("cache_max_entries = %d, want 100", ec.CacheMaxEntries)
	}
	if ec.LLMTimeout != 20*time.Second {
		t.Errorf("llm_timeout = %v, want 20s", ec.LLMTimeout)
	}
}

func TestQueueDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	qc, err := cfg.GetQueue()
	if err != nil {
		t.Fatalf("GetQueue failed: %v", err)
	}
	if qc.ItemTTL != 24*time.Hour {
		t.Errorf("item_ttl = %v, want 24h", qc.ItemTTL)
	}
	if qc.ExpirySweepInterval != 10*time.Minute {
		t.Errorf("expiry_sweep_frequency = %v, want 10m", qc.ExpirySweepInterval)
	}
}

func TestGetEnsembleRejectsBadDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("ensemble.cache_ttl", "five minutes")
	cfg := NewFromViper(v)

	if _, err := cfg.GetEnsemble(); err == nil {
		t.Fatal("expected error for an unparseable duration")
	}
}

func TestOverridesWinOverDefaults(t *testing.T) {
	v := NewEmptyViper()
	v.Set("llm.provider", "anthropic")
	v.Set("behavior.decay_lambda", 0.2)
	cfg := NewFromViper(v)

	if got := cfg.GetLLM().Provider; got != "anthropic" {
		t.Errorf("provider = %s, want anthropic", got)
	}
	if got := cfg.GetBehavior().DecayLambda; got != 0.2 {
		t.Errorf("decay_lambda = %v, want 0.2", got)
	}
	if got := cfg.GetBehavior().HistoryWindow; got != 500 {
		t.Errorf("history_window = %d, want the default 500", got)
	}
}
