package factory

import (
	"github.com/mikey/email-triage/internal/adapters/cache"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates prediction caches based on configuration.
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory.
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCache creates the prediction cache from the ensemble configuration.
func (f *CacheFactory) CreateCache() (core.PredictionCache, error) {
	ensembleCfg, err := f.cfg.GetEnsemble()
	if err != nil {
		return nil, err
	}
	return cache.NewMemoryCache(f.logger, ensembleCfg.CacheTTL, ensembleCfg.CacheMaxEntries), nil
}
