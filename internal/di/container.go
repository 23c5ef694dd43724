package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/audit"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/logging"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/mikey/email-triage/internal/vip"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}

	// Register LLM classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register prediction cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.PredictionCache, error) {
		return f.CreateCache()
	}); err != nil {
		return nil, err
	}

	// Register persistence and bind the individual port interfaces
	if err := container.Provide(func(f *factory.StoreFactory) (core.TriageStore, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.TriageStore) core.SenderStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.TriageStore) core.TrustStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.TriageStore) core.QueueStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.TriageStore) core.EventStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.TriageStore) core.UndoStore { return s }); err != nil {
		return nil, err
	}

	// Register engine configuration
	if err := container.Provide(func(cfg *config.Config) (core.EnsembleConfig, error) {
		ec, err := cfg.GetEnsemble()
		if err != nil {
			return core.EnsembleConfig{}, err
		}
		return core.EnsembleConfig{
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
		}, nil
	}); err != nil {
		return nil, err
	}

	// Register VIP checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.VIPChecker {
		senders := cfg.GetStringSlice("vip.senders")
		if len(senders) > 0 {
			logger.Info("Loaded VIP senders", zap.Strings("senders", senders))
		}
		return vip.NewChecker(senders, logger)
	}); err != nil {
		return nil, err
	}

	// Register activity logger
	if err := container.Provide(func(logger *zap.Logger) core.ActivityLogger {
		return audit.NewZapActivityLogger(logger)
	}); err != nil {
		return nil, err
	}

	// Register behavior model service
	if err := container.Provide(func(
		senders core.SenderStore,
		events core.EventStore,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.BehaviorService {
		bc := cfg.GetBehavior()
		return core.NewBehaviorService(senders, events, logger, bc.DecayLambda, bc.HistoryWindow)
	}); err != nil {
		return nil, err
	}

	// Register trust service
	if err := container.Provide(func(
		store core.TrustStore,
		ec core.EnsembleConfig,
		logger *zap.Logger,
	) *core.TrustService {
		return core.NewTrustService(store, logger, ec.SuggestionThreshold)
	}); err != nil {
		return nil, err
	}

	// Register Tier-1 predictor
	if err := container.Provide(func(
		cfg *config.Config,
		ec core.EnsembleConfig,
		logger *zap.Logger,
	) *core.Tier1Predictor {
		bc := cfg.GetBehavior()
		return core.NewTier1Predictor(logger, ec.SuggestionThreshold, bc.DecayLambda, nil)
	}); err != nil {
		return nil, err
	}

	// Register Tier-3 predictor
	if err := container.Provide(func(
		classifier core.Classifier,
		ec core.EnsembleConfig,
		logger *zap.Logger,
	) *core.Tier3Predictor {
		return core.NewTier3Predictor(classifier, logger, ec.LLMTimeout)
	}); err != nil {
		return nil, err
	}

	// Register action queue service
	if err := container.Provide(func(
		store core.QueueStore,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.QueueService, error) {
		qc, err := cfg.GetQueue()
		if err != nil {
			return nil, err
		}
		return core.NewQueueService(store, logger, qc.ItemTTL), nil
	}); err != nil {
		return nil, err
	}

	// Register ensemble predictor
	if err := container.Provide(func(
		ec core.EnsembleConfig,
		tier1 *core.Tier1Predictor,
		tier3 *core.Tier3Predictor,
		behavior *core.BehaviorService,
		trust *core.TrustService,
		queue *core.QueueService,
		cache core.PredictionCache,
		vipChecker core.VIPChecker,
		undo core.UndoStore,
		activity core.ActivityLogger,
		logger *zap.Logger,
	) *core.EnsemblePredictor {
		return core.NewEnsemblePredictor(ec, tier1, tier3, behavior, trust, queue, cache, vipChecker, undo, activity, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
