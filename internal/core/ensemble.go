package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnsembleConfig collects every caller-tunable knob of the prediction
// engine in one place.
type EnsembleConfig struct {
	// LLMFallbackThreshold is the Tier-1 confidence below which the LLM
	// tier is consulted.
	LLMFallbackThreshold float64
	// Weights are the default per-tier contributions before
	// normalization.
	Weights EnsembleWeights
	// AgreementBoost is added to the combined confidence when every
	// present tier votes for the winning action.
	AgreementBoost float64
	// SuggestionThreshold is the minimum confidence for queueing an
	// action for manual review.
	SuggestionThreshold float64
	// AutoExecuteThreshold is the approval bar used when a user has no
	// trust profile.
	AutoExecuteThreshold float64
	// MaxConcurrentLLM caps in-flight Tier-3 calls.
	MaxConcurrentLLM int
	// CacheTTL bounds the age of a reusable cached prediction.
	CacheTTL time.Duration
	// LLMTimeout bounds a single Tier-3 call.
	LLMTimeout time.Duration
}

// DefaultEnsembleConfig returns the standard engine configuration.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		LLMFallbackThreshold: 0.6,
		Weights:              EnsembleWeights{Tier1: 0.5, Tier2: 0.1, Tier3: 0.4},
		AgreementBoost:       0.15,
		SuggestionThreshold:  0.4,
		AutoExecuteThreshold: 0.85,
		MaxConcurrentLLM:     3,
		CacheTTL:             5 * time.Minute,
		LLMTimeout:           DefaultLLMTimeout,
	}
}

// normalizeWeights redistributes the default weights over the tiers that
// actually produced a prediction. Tier 2 is reserved and always absent, so
// its weight is split evenly between tiers 1 and 3; an absent tier 3 folds
// entirely into tier 1. The result always sums to exactly 1.0. Pure
// function, no order-dependent mutation.
func normalizeWeights(defaults EnsembleWeights, tier3Present bool) EnsembleWeights {
	w := EnsembleWeights{
		Tier1: defaults.Tier1 + defaults.Tier2/2,
		Tier3: defaults.Tier3 + defaults.Tier2/2,
	}
	if !tier3Present {
		w.Tier1 += w.Tier3
		w.Tier3 = 0
	}
	sum := w.Sum()
	if sum > 0 {
		w.Tier1 /= sum
		w.Tier3 /= sum
	}
	return w
}

// ExecuteFunc performs the side effect of an auto-approved action.
type ExecuteFunc func(ctx context.Context, email *Email, action Action) error

// EnsemblePredictor orchestrates the prediction tiers: it always computes
// Tier 1, escalates to Tier 3 only when Tier 1 is uncertain and the
// concurrency budget allows, merges the tiers under adaptive weighting,
// and consults the user's trust profile for the auto-approval bar.
type EnsemblePredictor struct {
	cfg      EnsembleConfig
	tier1    *Tier1Predictor
	tier3    *Tier3Predictor
	behavior *BehaviorService
	trust    *TrustService
	queue    *QueueService
	cache    PredictionCache
	vip      VIPChecker
	undo     UndoStore
	activity ActivityLogger
	logger   *zap.Logger

	mu        sync.Mutex
	inflight  int
	processed map[CacheKey]struct{}

	now func() time.Time
}

// NewEnsemblePredictor wires the engine together. The vip checker,
// undo store, and activity logger may be nil when those outbound
// consumers are not attached.
func NewEnsemblePredictor(
	cfg EnsembleConfig,
	tier1 *Tier1Predictor,
	tier3 *Tier3Predictor,
	behavior *BehaviorService,
	trust *TrustService,
	queue *QueueService,
	cache PredictionCache,
	vip VIPChecker,
	undo UndoStore,
	activity ActivityLogger,
	logger *zap.Logger,
) *EnsemblePredictor {
	if cfg.MaxConcurrentLLM <= 0 {
		cfg.MaxConcurrentLLM = 3
	}
	return &EnsemblePredictor{
		cfg:       cfg,
		tier1:     tier1,
		tier3:     tier3,
		behavior:  behavior,
		trust:     trust,
		queue:     queue,
		cache:     cache,
		vip:       vip,
		undo:      undo,
		activity:  activity,
		logger:    logger,
		processed: make(map[CacheKey]struct{}),
		now:       time.Now,
	}
}

func (e *EnsemblePredictor) tryAcquireLLM() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight >= e.cfg.MaxConcurrentLLM {
		return false
	}
	e.inflight++
	return true
}

func (e *EnsemblePredictor) releaseLLM() {
	e.mu.Lock()
	e.inflight--
	e.mu.Unlock()
}

func (e *EnsemblePredictor) markProcessed(key CacheKey) {
	e.mu.Lock()
	e.processed[key] = struct{}{}
	e.mu.Unlock()
}

func (e *EnsemblePredictor) isProcessed(key CacheKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.processed[key]
	return ok
}

// autoApproveThreshold resolves the active confidence bar for a user,
// falling back to the configured default when the trust store is
// unavailable.
func (e *EnsemblePredictor) autoApproveThreshold(ctx context.Context, userID string) float64 {
	if e.trust == nil {
		return e.cfg.AutoExecuteThreshold
	}
	profile, err := e.trust.GetOrCreate(ctx, userID)
	if err != nil {
		e.logger.Warn("Trust profile unavailable, using default threshold",
			zap.Error(err), zap.String("user_id", userID))
		return e.cfg.AutoExecuteThreshold
	}
	return profile.AutoApproveThreshold
}

// Predict runs the full pipeline for a single email. Unless forceRefresh
// is set, a cached result younger than the TTL is returned as-is even if
// the underlying sender model changed in between.
func (e *EnsemblePredictor) Predict(ctx context.Context, email *Email, userID string, forceRefresh bool) (*PredictionResult, error) {
	key := CacheKey{UserID: userID, EmailID: email.ID}
	if !forceRefresh {
		if cached, ok := e.cache.Get(key); ok {
			e.logger.Debug("Prediction cache hit",
				zap.String("user_id", userID), zap.String("email_id", email.ID))
			return cached, nil
		}
	}

	model, err := e.behavior.GetOrCreate(ctx, userID, email.From)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender model: %w", err)
	}

	t1 := e.tier1.Predict(email, model)

	var t3 *TierPrediction
	if t1.Confidence < e.cfg.LLMFallbackThreshold && e.tier3 != nil {
		if e.tryAcquireLLM() {
			t3 = e.tier3.Predict(ctx, email)
			e.releaseLLM()
		} else {
			e.logger.Debug("Tier-3 budget exhausted, proceeding with Tier 1 only",
				zap.String("email_id", email.ID))
		}
	}

	threshold := e.autoApproveThreshold(ctx, userID)
	return e.finalize(email, userID, t1, t3, threshold), nil
}

// finalize combines the tiers, applies the VIP guard, and builds and
// caches the prediction result.
func (e *EnsemblePredictor) finalize(email *Email, userID string, t1, t3 *TierPrediction, threshold float64) *PredictionResult {
	final, weights := e.combine(t1, t3, threshold)

	if e.vip != nil && e.vip.IsVIP(email.From) && (final.Action == ActionArchive || final.Action == ActionDelete) {
		final.Action = ActionKeep
		final.Reasoning += " Sender is VIP-pinned; keeping."
	}

	result := &PredictionResult{
		PredictionID: uuid.NewString(),
		EmailID:      email.ID,
		ThreadID:     email.ThreadID,
		UserID:       userID,
		Tier1:        t1,
		Tier3:        t3,
		Final:        final,
		Weights:      weights,
		Timestamp:    e.now(),
	}

	key := CacheKey{UserID: userID, EmailID: email.ID}
	e.cache.Set(key, result)
	e.markProcessed(key)

	e.logger.Debug("Prediction finalized",
		zap.String("email_id", email.ID),
		zap.String("action", string(final.Action)),
		zap.Float64("confidence", final.Confidence),
		zap.Bool("requires_approval", final.RequiresApproval))
	return result
}

// combine merges the present tiers into a single decision. Each candidate
// action accumulates confidence*weight from the tiers that voted for it;
// ties resolve in tier evaluation order, so Tier 1 wins a tie. When every
// present tier agrees on the winner the confidence gets a fixed boost,
// capped at 1.0.
func (e *EnsemblePredictor) combine(t1, t3 *TierPrediction, autoApproveThreshold float64) (FinalPrediction, EnsembleWeights) {
	weights := normalizeWeights(e.cfg.Weights, t3 != nil)

	type vote struct {
		pred   *TierPrediction
		weight float64
	}
	votes := []vote{{t1, weights.Tier1}}
	if t3 != nil {
		votes = append(votes, vote{t3, weights.Tier3})
	}

	scores := make(map[Action]float64, len(votes))
	var winner Action
	var best float64
	for i, v := range votes {
		scores[v.pred.Action] += v.pred.Confidence * v.weight
		if i == 0 || scores[v.pred.Action] > best {
			winner = v.pred.Action
			best = scores[v.pred.Action]
		}
	}

	confidence := scores[winner]
	agreement := len(votes) > 1
	for _, v := range votes {
		if v.pred.Action != winner {
			agreement = false
		}
	}
	if agreement {
		confidence += e.cfg.AgreementBoost
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	parts := make([]string, 0, len(votes)+1)
	for _, v := range votes {
		parts = append(parts, fmt.Sprintf("%s: %s (%.0f%%)", v.pred.Tier, v.pred.Action, v.pred.Confidence*100))
	}
	reasoning := strings.Join(parts, ", ")
	if agreement {
		reasoning += ". All tiers agree."
	}

	return FinalPrediction{
		Action:           winner,
		Confidence:       confidence,
		Reasoning:        reasoning,
		RequiresApproval: confidence < autoApproveThreshold,
	}, weights
}

// PredictBatch predicts every email in one pass. Tier 1 runs for all
// emails first; the subset that needs the LLM is processed in sequential
// chunks of MaxConcurrentLLM, with all calls inside a chunk issued
// concurrently and the whole chunk awaited before the next begins. That
// chunking is the engine's backpressure: a hard ceiling on concurrent
// external calls at the cost of latency. Already-processed emails are
// skipped unless forceRefresh is set.
func (e *EnsemblePredictor) PredictBatch(ctx context.Context, emails []*Email, userID string, forceRefresh bool) (map[string]*PredictionResult, error) {
	results := make(map[string]*PredictionResult, len(emails))
	threshold := e.autoApproveThreshold(ctx, userID)

	type pending struct {
		email *Email
		t1    *TierPrediction
	}
	var direct []pending
	var needLLM []pending

	for _, email := range emails {
		key := CacheKey{UserID: userID, EmailID: email.ID}
		if !forceRefresh {
			if cached, ok := e.cache.Get(key); ok {
				results[email.ID] = cached
				continue
			}
			if e.isProcessed(key) {
				continue
			}
		}

		model, err := e.behavior.GetOrCreate(ctx, userID, email.From)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sender model for %s: %w", email.ID, err)
		}
		t1 := e.tier1.Predict(email, model)
		p := pending{email: email, t1: t1}
		if t1.Confidence < e.cfg.LLMFallbackThreshold && e.tier3 != nil {
			needLLM = append(needLLM, p)
		} else {
			direct = append(direct, p)
		}
	}

	for _, p := range direct {
		results[p.email.ID] = e.finalize(p.email, userID, p.t1, nil, threshold)
	}

	chunk := e.cfg.MaxConcurrentLLM
	for start := 0; start < len(needLLM); start += chunk {
		end := start + chunk
		if end > len(needLLM) {
			end = len(needLLM)
		}
		batch := needLLM[start:end]
		t3s := make([]*TierPrediction, len(batch))

		var wg sync.WaitGroup
		for i, p := range batch {
			if !e.tryAcquireLLM() {
				continue
			}
			wg.Add(1)
			go func(i int, email *Email) {
				defer wg.Done()
				defer e.releaseLLM()
				t3s[i] = e.tier3.Predict(ctx, email)
			}(i, p.email)
		}
		wg.Wait()

		for i, p := range batch {
			results[p.email.ID] = e.finalize(p.email, userID, p.t1, t3s[i], threshold)
		}
	}

	e.logger.Info("Batch prediction complete",
		zap.String("user_id", userID),
		zap.Int("emails", len(emails)),
		zap.Int("llm_calls", len(needLLM)),
		zap.Int("results", len(results)))
	return results, nil
}

// CreateActionQueueItem packages a prediction into a pending queue item.
// Pure construction; persistence happens at enqueue time.
func (e *EnsemblePredictor) CreateActionQueueItem(prediction *PredictionResult, email *Email, accountID string) *ActionQueueItem {
	now := e.now()
	return &ActionQueueItem{
		ItemID:     uuid.NewString(),
		AccountID:  accountID,
		UserID:     prediction.UserID,
		EmailID:    prediction.EmailID,
		Prediction: prediction,
		From:       email.From,
		Subject:    email.Subject,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ProcessAutoActions dispatches predictions: auto-approved non-keep
// actions are executed through the callback (with an undo snapshot taken
// first); execution failures fall back to enqueueing so no flagged action
// is ever silently dropped; confident-but-unapproved actions are queued
// for review; keep actions are neither queued nor executed.
func (e *EnsemblePredictor) ProcessAutoActions(ctx context.Context, emails []*Email, userID, accountID string, execute ExecuteFunc) error {
	for _, email := range emails {
		prediction, err := e.Predict(ctx, email, userID, false)
		if err != nil {
			return err
		}

		action := prediction.Final.Action
		if action == ActionKeep {
			continue
		}

		if !prediction.Final.RequiresApproval {
			e.snapshotForUndo(ctx, email, userID, action)
			execErr := execute(ctx, email, action)
			if e.activity != nil {
				e.activity.LogAutoExecution(prediction, execErr)
			}
			if execErr == nil {
				continue
			}
			e.logger.Warn("Auto-execution failed, queueing for review",
				zap.Error(execErr),
				zap.String("email_id", email.ID),
				zap.String("action", string(action)))
			if err := e.queue.Enqueue(ctx, e.CreateActionQueueItem(prediction, email, accountID)); err != nil {
				return fmt.Errorf("failed to enqueue after execution failure: %w", err)
			}
			continue
		}

		if prediction.Final.Confidence >= e.cfg.SuggestionThreshold {
			if err := e.queue.Enqueue(ctx, e.CreateActionQueueItem(prediction, email, accountID)); err != nil {
				return fmt.Errorf("failed to enqueue suggestion: %w", err)
			}
		}
	}
	return nil
}

func (e *EnsemblePredictor) snapshotForUndo(ctx context.Context, email *Email, userID string, action Action) {
	if e.undo == nil {
		return
	}
	snapshot := &UndoSnapshot{
		SnapshotID: uuid.NewString(),
		UserID:     userID,
		EmailID:    email.ID,
		Action:     action,
		PriorState: map[string]string{
			"threadId":  email.ThreadID,
			"isStarred": fmt.Sprintf("%t", email.IsStarred),
		},
		TakenAt: e.now(),
	}
	if err := e.undo.SaveSnapshot(ctx, snapshot); err != nil {
		e.logger.Error("Failed to save undo snapshot",
			zap.Error(err), zap.String("email_id", email.ID))
	}
}

// Resolve records the user's response to a prediction: the cached result
// is marked resolved and the outcome feeds the trust state machine.
func (e *EnsemblePredictor) Resolve(ctx context.Context, userID, emailID string, outcome Outcome) error {
	key := CacheKey{UserID: userID, EmailID: emailID}
	result, ok := e.cache.Get(key)
	if !ok {
		return ErrNotFound
	}

	result.IsResolved = true
	result.UserResponse = outcome
	e.cache.Set(key, result)

	if e.trust != nil {
		if _, err := e.trust.RecordOutcome(ctx, userID, outcome); err != nil {
			return err
		}
	}
	if e.activity != nil {
		e.activity.LogResolution(result, outcome)
	}
	return nil
}
