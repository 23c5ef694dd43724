package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultSuggestionThreshold is the minimum confidence for an action to be
// queued for manual review.
const DefaultSuggestionThreshold = 0.4

// StageConfig describes one trust stage: how much history and what
// approval rate it takes to leave it, and the auto-approve confidence bar
// while in it.
type StageConfig struct {
	Stage                TrustStage
	RequiredInteractions int
	MinApprovalRate      float64
	AutoApproveThreshold float64
	Next                 TrustStage
}

// stageTable is the authoritative trust configuration. New users start in
// training_wheels; advancement is one-directional.
var stageTable = []StageConfig{
	{Stage: StageTrainingWheels, RequiredInteractions: 50, MinApprovalRate: 0.70, AutoApproveThreshold: 0.95, Next: StageBuildingConfidence},
	{Stage: StageBuildingConfidence, RequiredInteractions: 200, MinApprovalRate: 0.85, AutoApproveThreshold: 0.85, Next: StageEarnedAutonomy},
	{Stage: StageEarnedAutonomy, MinApprovalRate: 0.90, AutoApproveThreshold: 0.75},
}

// StageConfigs returns a copy of the trust stage table for display in
// settings surfaces.
func StageConfigs() []StageConfig {
	out := make([]StageConfig, len(stageTable))
	copy(out, stageTable)
	return out
}

func stageConfig(stage TrustStage) StageConfig {
	for _, cfg := range stageTable {
		if cfg.Stage == stage {
			return cfg
		}
	}
	return stageTable[0]
}

// TrustService maintains per-user trust profiles and applies the stage
// state machine on every recorded outcome.
type TrustService struct {
	store  TrustStore
	logger *zap.Logger

	suggestionThreshold float64
	now                 func() time.Time
}

// NewTrustService creates a trust service over the given store.
func NewTrustService(store TrustStore, logger *zap.Logger, suggestionThreshold float64) *TrustService {
	if suggestionThreshold <= 0 {
		suggestionThreshold = DefaultSuggestionThreshold
	}
	return &TrustService{
		store:               store,
		logger:              logger,
		suggestionThreshold: suggestionThreshold,
		now:                 time.Now,
	}
}

// GetOrCreate returns the user's trust profile, creating one in
// training_wheels if none exists.
func (s *TrustService) GetOrCreate(ctx context.Context, userID string) (*TrustProfile, error) {
	profile, err := s.store.GetTrustProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if err != ErrNotFound {
		return nil, fmt.Errorf("failed to load trust profile: %w", err)
	}

	initial := stageTable[0]
	now := s.now()
	profile = &TrustProfile{
		UserID:               userID,
		Stage:                initial.Stage,
		AutoApproveThreshold: initial.AutoApproveThreshold,
		SuggestionThreshold:  s.suggestionThreshold,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.SaveTrustProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save new trust profile: %w", err)
	}
	return profile, nil
}

// ApprovalRate computes the weighted approval rate: modifications count as
// half an approval.
func ApprovalRate(p *TrustProfile) float64 {
	if p.TotalInteractions == 0 {
		return 0
	}
	return (float64(p.ApprovedActions) + 0.5*float64(p.ModifiedActions)) / float64(p.TotalInteractions)
}

// RecordOutcome registers a user's disposition of a predicted action and
// advances the trust stage when the current stage's interaction and
// approval requirements are both met. Stages never regress; a later drop
// in approval rate does not demote the user.
func (s *TrustService) RecordOutcome(ctx context.Context, userID string, outcome Outcome) (*TrustProfile, error) {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.TotalInteractions++
	switch outcome {
	case OutcomeApproved:
		profile.ApprovedActions++
	case OutcomeRejected:
		profile.RejectedActions++
	case OutcomeModified:
		profile.ModifiedActions++
	default:
		return nil, fmt.Errorf("unknown outcome %q", outcome)
	}

	rate := ApprovalRate(profile)
	profile.TrustScore = rate
	profile.UpdatedAt = s.now()

	cfg := stageConfig(profile.Stage)
	if cfg.Next != "" && profile.TotalInteractions >= cfg.RequiredInteractions && rate >= cfg.MinApprovalRate {
		next := stageConfig(cfg.Next)
		s.logger.Info("Trust stage advanced",
			zap.String("user_id", userID),
			zap.String("from", string(profile.Stage)),
			zap.String("to", string(next.Stage)),
			zap.Float64("approval_rate", rate),
			zap.Int("interactions", profile.TotalInteractions))
		profile.Stage = next.Stage
		profile.AutoApproveThreshold = next.AutoApproveThreshold
	}

	if err := s.store.SaveTrustProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save trust profile: %w", err)
	}
	return profile, nil
}
