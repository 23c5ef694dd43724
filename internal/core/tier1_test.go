package core

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestTier1(now time.Time) *Tier1Predictor {
	p := NewTier1Predictor(zap.NewNop(), DefaultSuggestionThreshold, DefaultDecayLambda, nil)
	p.now = func() time.Time { return now }
	return p
}

func archiveHeavyModel(now time.Time) *SenderModel {
	// 8 of 10 archived: smoothed archive rate (8+1)/(10+2) = 0.75.
	return &SenderModel{
		SenderEmail:     "newsletter@shop.example",
		TotalEmails:     10,
		ArchivedEmails:  8,
		ArchiveRate:     0.75,
		ResponseRate:    1.0 / 12.0,
		DeleteRate:      1.0 / 12.0,
		LastInteraction: now,
	}
}

func TestTier1NoHistoryDefaultsToKeep(t *testing.T) {
	p := newTestTier1(time.Now())

	pred := p.Predict(&Email{ID: "e1", From: "new@stranger.example"}, nil)

	if pred.Action != ActionKeep {
		t.Errorf("action = %s, want keep", pred.Action)
	}
	if pred.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", pred.Confidence)
	}
	if pred.Tier != TierNameBayesian {
		t.Errorf("tier = %s, want %s", pred.Tier, TierNameBayesian)
	}
}

func TestTier1ArchiveHeavySender(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestTier1(now)
	model := archiveHeavyModel(now)

	pred := p.Predict(&Email{ID: "e1", From: model.SenderEmail}, model)

	if pred.Action != ActionArchive {
		t.Errorf("action = %s, want archive", pred.Action)
	}
	if math.Abs(pred.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", pred.Confidence)
	}
	if pred.Confidence <= 0.6 {
		t.Errorf("confidence %v should clear the LLM fallback threshold", pred.Confidence)
	}
	if pred.Factors["timeDecay"] != 1.0 {
		t.Errorf("timeDecay factor = %v, want 1.0", pred.Factors["timeDecay"])
	}
}

func TestTier1Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestTier1(now)
	model := archiveHeavyModel(now)
	email := &Email{ID: "e1", From: model.SenderEmail}

	first := p.Predict(email, model)
	for i := 0; i < 10; i++ {
		next := p.Predict(email, model)
		if next.Action != first.Action || next.Confidence != first.Confidence {
			t.Fatalf("prediction changed on repeat: %s/%v vs %s/%v",
				next.Action, next.Confidence, first.Action, first.Confidence)
		}
	}
}

func TestTier1DecayLowersConfidence(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestTier1(now)

	fresh := archiveHeavyModel(now)
	stale := archiveHeavyModel(now.Add(-30 * 24 * time.Hour))
	email := &Email{ID: "e1", From: fresh.SenderEmail}

	freshPred := p.Predict(email, fresh)
	stalePred := p.Predict(email, stale)

	if stalePred.Factors["timeDecay"] >= freshPred.Factors["timeDecay"] {
		t.Errorf("stale decay %v should be below fresh decay %v",
			stalePred.Factors["timeDecay"], freshPred.Factors["timeDecay"])
	}
}

func TestTier1BelowSuggestionThresholdDefaultsToKeep(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestTier1(now)
	model := &SenderModel{
		SenderEmail:     "mild@nowhere.example",
		TotalEmails:     5,
		ResponseRate:    0.1,
		ArchiveRate:     0.2,
		DeleteRate:      0.1,
		LastInteraction: now,
	}

	pred := p.Predict(&Email{ID: "e1", From: model.SenderEmail}, model)

	if pred.Action != ActionKeep {
		t.Errorf("action = %s, want keep", pred.Action)
	}
	if pred.Confidence != 0.3 {
		t.Errorf("confidence = %v, want the low-confidence default", pred.Confidence)
	}
}

func TestTier1VIPSenderCanStar(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestTier1(now)
	model := &SenderModel{
		SenderEmail:     "boss@work.example",
		TotalEmails:     10,
		StarredEmails:   5,
		ResponseRate:    0.3,
		ArchiveRate:     0.1,
		DeleteRate:      0.05,
		IsVIP:           true,
		LastInteraction: now,
	}

	pred := p.Predict(&Email{ID: "e1", From: model.SenderEmail}, model)

	if pred.Action != ActionStar {
		t.Errorf("action = %s, want star for a VIP with heavy starring", pred.Action)
	}
	if pred.Confidence > 1.0 {
		t.Errorf("confidence %v exceeds 1.0", pred.Confidence)
	}
}
