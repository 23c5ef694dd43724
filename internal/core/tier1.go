package core

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// TierNameBayesian and TierNameLLM label the two prediction tiers.
const (
	TierNameBayesian = "tier1"
	TierNameLLM      = "tier3"
)

// lowConfidence is the confidence assigned when no sender history exists
// or nothing clears the suggestion threshold.
const lowConfidence = 0.3

// ScoringRule maps sender statistics to a candidate action and confidence.
// The rule is injected so it can be swapped without touching consumers,
// which depend only on the TierPrediction contract.
type ScoringRule func(email *Email, model *SenderModel, decayed float64) (Action, float64)

// Tier1Predictor is the fast, deterministic, in-process predictor built on
// per-sender statistics. It is always computed for every email.
type Tier1Predictor struct {
	rule                ScoringRule
	suggestionThreshold float64
	decayLambda         float64
	logger              *zap.Logger
	now                 func() time.Time
}

// NewTier1Predictor creates a Tier-1 predictor with the default scoring
// rule unless one is supplied.
func NewTier1Predictor(logger *zap.Logger, suggestionThreshold, decayLambda float64, rule ScoringRule) *Tier1Predictor {
	if suggestionThreshold <= 0 {
		suggestionThreshold = DefaultSuggestionThreshold
	}
	if decayLambda <= 0 {
		decayLambda = DefaultDecayLambda
	}
	p := &Tier1Predictor{
		rule:                rule,
		suggestionThreshold: suggestionThreshold,
		decayLambda:         decayLambda,
		logger:              logger,
		now:                 time.Now,
	}
	if p.rule == nil {
		p.rule = defaultScoringRule
	}
	return p
}

// defaultScoringRule scores each candidate action as the sender's smoothed
// rate for that action damped by recency, with the keep score lifted by
// importance so that high-importance senders are retained rather than
// filed away. Star becomes a candidate only for VIP or heavily-starred
// senders.
func defaultScoringRule(email *Email, model *SenderModel, decayed float64) (Action, float64) {
	imp := importance(model, decayed)

	scores := []struct {
		action Action
		score  float64
	}{
		{ActionKeep, model.ResponseRate*decayed + 0.15*imp},
		{ActionArchive, model.ArchiveRate * decayed},
		{ActionDelete, model.DeleteRate * decayed},
	}
	if model.IsVIP || model.StarRate() > 0.3 {
		star := model.StarRate()*decayed + 0.1*imp
		if model.IsVIP {
			star += 0.2
		}
		scores = append(scores, struct {
			action Action
			score  float64
		}{ActionStar, star})
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.score > best.score {
			best = s
		}
	}
	if best.score > 1.0 {
		best.score = 1.0
	}
	return best.action, best.score
}

// Predict produces the Tier-1 prediction for an email. A nil model means
// no sender history; the predictor defaults to keep at low confidence.
func (p *Tier1Predictor) Predict(email *Email, model *SenderModel) *TierPrediction {
	if model == nil {
		return &TierPrediction{
			Tier:       TierNameBayesian,
			Action:     ActionKeep,
			Confidence: lowConfidence,
			Reasoning:  "No sender history, defaulting to keep",
			Factors:    map[string]float64{},
		}
	}

	days := p.now().Sub(model.LastInteraction).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	decayed := math.Exp(-p.decayLambda * days)

	action, score := p.rule(email, model, decayed)
	factors := map[string]float64{
		"responseRate":    model.ResponseRate,
		"archiveRate":     model.ArchiveRate,
		"importanceScore": importance(model, decayed),
		"timeDecay":       decayed,
	}

	if score < p.suggestionThreshold {
		return &TierPrediction{
			Tier:       TierNameBayesian,
			Action:     ActionKeep,
			Confidence: lowConfidence,
			Reasoning:  fmt.Sprintf("No action cleared the suggestion threshold (best %.2f), defaulting to keep", score),
			Factors:    factors,
		}
	}

	return &TierPrediction{
		Tier:       TierNameBayesian,
		Action:     action,
		Confidence: score,
		Reasoning: fmt.Sprintf("Sender history over %d emails favors %s (%.0f%% confidence, decay %.2f)",
			model.TotalEmails, action, score*100, decayed),
		Factors: factors,
	}
}
