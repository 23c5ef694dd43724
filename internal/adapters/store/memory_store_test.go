package store

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/email-triage/internal/core"
)

func TestMemoryStoreSenderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetSender(ctx, "u1", "a@b.example"); err != core.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	model := &core.SenderModel{
		SenderID:    "s1",
		SenderEmail: "a@b.example",
		UserID:      "u1",
		TotalEmails: 3,
		ArchiveRate: 0.5,
	}
	if err := s.SaveSender(ctx, model); err != nil {
		t.Fatalf("SaveSender failed: %v", err)
	}

	got, err := s.GetSender(ctx, "u1", "a@b.example")
	if err != nil {
		t.Fatalf("GetSender failed: %v", err)
	}
	if got.TotalEmails != 3 || got.ArchiveRate != 0.5 {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// The stored model is isolated from caller mutation.
	got.TotalEmails = 99
	again, err := s.GetSender(ctx, "u1", "a@b.example")
	if err != nil {
		t.Fatalf("GetSender failed: %v", err)
	}
	if again.TotalEmails != 3 {
		t.Error("store returned a shared pointer")
	}

	models, err := s.ListSenders(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSenders failed: %v", err)
	}
	if len(models) != 1 {
		t.Errorf("listed %d senders, want 1", len(models))
	}
}

func TestMemoryStoreTrustRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetTrustProfile(ctx, "u1"); err != core.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	profile := &core.TrustProfile{UserID: "u1", Stage: core.StageTrainingWheels, AutoApproveThreshold: 0.95}
	if err := s.SaveTrustProfile(ctx, profile); err != nil {
		t.Fatalf("SaveTrustProfile failed: %v", err)
	}
	got, err := s.GetTrustProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetTrustProfile failed: %v", err)
	}
	if got.Stage != core.StageTrainingWheels || got.AutoApproveThreshold != 0.95 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestMemoryStoreQueueFiltering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	items := []*core.ActionQueueItem{
		{ItemID: "q1", UserID: "u1", Status: core.StatusPending},
		{ItemID: "q2", UserID: "u1", Status: core.StatusExecuted},
		{ItemID: "q3", UserID: "u2", Status: core.StatusPending},
	}
	for _, item := range items {
		if err := s.SaveQueueItem(ctx, item); err != nil {
			t.Fatalf("SaveQueueItem failed: %v", err)
		}
	}

	pending, err := s.ListQueueItems(ctx, "u1", core.StatusPending)
	if err != nil {
		t.Fatalf("ListQueueItems failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ItemID != "q1" {
		t.Errorf("pending for u1 = %+v, want just q1", pending)
	}

	all, err := s.ListQueueItems(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListQueueItems failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("listed %d items for u1, want 2", len(all))
	}

	if _, err := s.GetQueueItem(ctx, "ghost"); err != core.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePendingUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	items := []*core.ActionQueueItem{
		{ItemID: "q1", UserID: "u1", Status: core.StatusPending},
		{ItemID: "q2", UserID: "u1", Status: core.StatusPending},
		{ItemID: "q3", UserID: "u2", Status: core.StatusExecuted},
	}
	for _, item := range items {
		if err := s.SaveQueueItem(ctx, item); err != nil {
			t.Fatalf("SaveQueueItem failed: %v", err)
		}
	}

	users, err := s.PendingUsers(ctx)
	if err != nil {
		t.Fatalf("PendingUsers failed: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("pending users = %v, want [u1]", users)
	}
}

func TestMemoryStoreEventsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		event := &core.BehaviorEvent{
			EventID:   string(rune('a' + i)),
			UserID:    "u1",
			EventType: core.EventArchive,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	events, err := s.RecentEvents(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}

	if err := s.SaveSnapshot(ctx, &core.UndoSnapshot{SnapshotID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if got := len(s.Snapshots()); got != 1 {
		t.Errorf("stored %d snapshots, want 1", got)
	}
}
