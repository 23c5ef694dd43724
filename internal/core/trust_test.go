package core

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"
)

func newTestTrustService(store *fakeStore) *TrustService {
	return NewTrustService(store, zap.NewNop(), DefaultSuggestionThreshold)
}

func recordOutcomes(t *testing.T, svc *TrustService, userID string, outcome Outcome, n int) *TrustProfile {
	t.Helper()
	var profile *TrustProfile
	var err error
	for i := 0; i < n; i++ {
		profile, err = svc.RecordOutcome(context.Background(), userID, outcome)
		if err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}
	return profile
}

func TestNewUserStartsInTrainingWheels(t *testing.T) {
	svc := newTestTrustService(newFakeStore())

	profile, err := svc.GetOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if profile.Stage != StageTrainingWheels {
		t.Errorf("stage = %s, want %s", profile.Stage, StageTrainingWheels)
	}
	if profile.AutoApproveThreshold != 0.95 {
		t.Errorf("auto-approve threshold = %v, want 0.95", profile.AutoApproveThreshold)
	}
}

func TestStageAdvancement(t *testing.T) {
	svc := newTestTrustService(newFakeStore())

	profile := recordOutcomes(t, svc, "u1", OutcomeApproved, 49)
	if profile.Stage != StageTrainingWheels {
		t.Fatalf("advanced after %d interactions, stage = %s", profile.TotalInteractions, profile.Stage)
	}

	profile = recordOutcomes(t, svc, "u1", OutcomeApproved, 1)
	if profile.Stage != StageBuildingConfidence {
		t.Fatalf("stage after 50 approvals = %s, want %s", profile.Stage, StageBuildingConfidence)
	}
	if profile.AutoApproveThreshold != 0.85 {
		t.Errorf("auto-approve threshold = %v, want 0.85", profile.AutoApproveThreshold)
	}

	profile = recordOutcomes(t, svc, "u1", OutcomeApproved, 150)
	if profile.Stage != StageEarnedAutonomy {
		t.Fatalf("stage after 200 approvals = %s, want %s", profile.Stage, StageEarnedAutonomy)
	}
	if profile.AutoApproveThreshold != 0.75 {
		t.Errorf("auto-approve threshold = %v, want 0.75", profile.AutoApproveThreshold)
	}
}

func TestNoAdvancementBelowApprovalRate(t *testing.T) {
	svc := newTestTrustService(newFakeStore())

	// 30 approvals and 30 rejections: 60 interactions but rate 0.5 < 0.70.
	recordOutcomes(t, svc, "u1", OutcomeApproved, 30)
	profile := recordOutcomes(t, svc, "u1", OutcomeRejected, 30)

	if profile.Stage != StageTrainingWheels {
		t.Errorf("stage = %s, want %s", profile.Stage, StageTrainingWheels)
	}
}

func TestStageNeverRegresses(t *testing.T) {
	svc := newTestTrustService(newFakeStore())

	recordOutcomes(t, svc, "u1", OutcomeApproved, 200)
	profile := recordOutcomes(t, svc, "u1", OutcomeRejected, 500)

	if profile.Stage != StageEarnedAutonomy {
		t.Errorf("stage regressed to %s after rejections", profile.Stage)
	}
	if profile.AutoApproveThreshold != 0.75 {
		t.Errorf("auto-approve threshold changed to %v", profile.AutoApproveThreshold)
	}
}

func TestApprovalRateCountsModificationsAsHalf(t *testing.T) {
	p := &TrustProfile{
		TotalInteractions: 10,
		ApprovedActions:   6,
		ModifiedActions:   2,
		RejectedActions:   2,
	}
	want := (6.0 + 0.5*2.0) / 10.0
	if got := ApprovalRate(p); math.Abs(got-want) > 1e-9 {
		t.Errorf("approval rate = %v, want %v", got, want)
	}

	if got := ApprovalRate(&TrustProfile{}); got != 0 {
		t.Errorf("approval rate with no interactions = %v, want 0", got)
	}
}

func TestRecordOutcomeRejectsUnknownOutcome(t *testing.T) {
	svc := newTestTrustService(newFakeStore())
	if _, err := svc.RecordOutcome(context.Background(), "u1", Outcome("shrugged")); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}
