package core

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBehaviorService(store *fakeStore) *BehaviorService {
	return NewBehaviorService(store, store, zap.NewNop(), DefaultDecayLambda, 10)
}

func TestGetOrCreateSeedsPriors(t *testing.T) {
	svc := newTestBehaviorService(newFakeStore())

	model, err := svc.GetOrCreate(context.Background(), "u1", "Alice@Example.COM")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if model.SenderEmail != "alice@example.com" {
		t.Errorf("expected lowercased sender email, got %s", model.SenderEmail)
	}
	if model.SenderDomain != "example.com" {
		t.Errorf("expected domain example.com, got %s", model.SenderDomain)
	}
	if model.ResponseRate != 0.5 || model.ArchiveRate != 0.3 || model.DeleteRate != 0.1 {
		t.Errorf("unexpected priors: response=%v archive=%v delete=%v",
			model.ResponseRate, model.ArchiveRate, model.DeleteRate)
	}
	if model.DecayedWeight != 1.0 {
		t.Errorf("expected initial decayed weight 1.0, got %v", model.DecayedWeight)
	}
}

func TestRecordEventLaplaceSmoothing(t *testing.T) {
	svc := newTestBehaviorService(newFakeStore())
	ctx := context.Background()

	var model *SenderModel
	var err error
	for i := 0; i < 8; i++ {
		model, err = svc.RecordEvent(ctx, "u1", "e1", "news@example.com", EventArchive, nil)
		if err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		model, err = svc.RecordEvent(ctx, "u1", "e2", "news@example.com", EventRespond, nil)
		if err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	// 8 archives out of 10 emails: (8+1)/(10+2)
	if got, want := model.ArchiveRate, 0.75; math.Abs(got-want) > 1e-9 {
		t.Errorf("archive rate = %v, want %v", got, want)
	}
	if got, want := model.ResponseRate, 3.0/12.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("response rate = %v, want %v", got, want)
	}
	if model.TotalEmails != 10 {
		t.Errorf("total emails = %d, want 10", model.TotalEmails)
	}
}

func TestRecordEventRatesStayInsideOpenInterval(t *testing.T) {
	svc := newTestBehaviorService(newFakeStore())
	ctx := context.Background()

	var model *SenderModel
	var err error
	for i := 0; i < 50; i++ {
		model, err = svc.RecordEvent(ctx, "u1", "e1", "spam@junk.example", EventDelete, nil)
		if err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	for name, rate := range map[string]float64{
		"response": model.ResponseRate,
		"archive":  model.ArchiveRate,
		"delete":   model.DeleteRate,
	} {
		if rate <= 0 || rate >= 1 {
			t.Errorf("%s rate = %v, want strictly inside (0,1)", name, rate)
		}
	}
}

func TestRecordEventUnstarFloorsAtZero(t *testing.T) {
	svc := newTestBehaviorService(newFakeStore())
	ctx := context.Background()

	model, err := svc.RecordEvent(ctx, "u1", "e1", "a@b.example", EventUnstar, nil)
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if model.StarredEmails != 0 {
		t.Errorf("starred emails = %d, want 0", model.StarredEmails)
	}
}

func TestDecayAppliedAtReadTimeOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestBehaviorService(store)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	model, err := svc.RecordEvent(ctx, "u1", "e1", "a@b.example", EventArchive, nil)
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if model.DecayedWeight != 1.0 {
		t.Errorf("decayed weight after event = %v, want 1.0", model.DecayedWeight)
	}

	// Ten days later the stored weight is untouched but the read-time
	// weight has decayed to e^(-0.1*10).
	svc.now = func() time.Time { return base.Add(10 * 24 * time.Hour) }
	stored, err := store.GetSender(ctx, "u1", "a@b.example")
	if err != nil {
		t.Fatalf("GetSender failed: %v", err)
	}
	if stored.DecayedWeight != 1.0 {
		t.Errorf("stored decayed weight = %v, want 1.0", stored.DecayedWeight)
	}
	got := svc.DecayedWeightOf(stored)
	want := math.Exp(-1.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("read-time decayed weight = %v, want %v", got, want)
	}
}

func TestImportanceWeighting(t *testing.T) {
	m := &SenderModel{
		TotalEmails:   50,
		StarredEmails: 10,
		ResponseRate:  0.6,
	}
	// 0.4*0.6 + 0.3*(10/50) + 0.2*1.0 + 0.1*min(50/100,1)
	want := 0.4*0.6 + 0.3*0.2 + 0.2*1.0 + 0.1*0.5
	if got := importance(m, 1.0); math.Abs(got-want) > 1e-9 {
		t.Errorf("importance = %v, want %v", got, want)
	}
}

func TestImportanceVolumeSaturates(t *testing.T) {
	a := &SenderModel{TotalEmails: 100, ResponseRate: 0.5}
	b := &SenderModel{TotalEmails: 10000, ResponseRate: 0.5}
	if importance(a, 1.0) != importance(b, 1.0) {
		t.Error("volume factor should saturate at 100 emails")
	}
}

func TestRankVIPFirstThenImportance(t *testing.T) {
	store := newFakeStore()
	svc := newTestBehaviorService(store)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := svc.RecordEvent(ctx, "u1", "e1", "busy@work.example", EventRespond, nil); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}
	if _, err := svc.RecordEvent(ctx, "u1", "e2", "quiet@family.example", EventRead, nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if err := svc.MarkVIP(ctx, "u1", "quiet@family.example", true); err != nil {
		t.Fatalf("MarkVIP failed: %v", err)
	}

	ranked, err := svc.Rank(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked %d senders, want 2", len(ranked))
	}
	if ranked[0].SenderEmail != "quiet@family.example" {
		t.Errorf("expected VIP sender ranked first, got %s", ranked[0].SenderEmail)
	}
}

func TestRecentEventsWindowBounded(t *testing.T) {
	svc := newTestBehaviorService(newFakeStore())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := svc.RecordEvent(ctx, "u1", "e1", "a@b.example", EventRead, nil); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	if got := len(svc.RecentEvents(0)); got != 10 {
		t.Errorf("history window holds %d events, want 10", got)
	}
	if got := len(svc.RecentEvents(3)); got != 3 {
		t.Errorf("limited history returned %d events, want 3", got)
	}
}
