package store

import (
	"context"
	"strings"
	"sync"

	"github.com/mikey/email-triage/internal/core"
)

// MemoryStore is an in-memory implementation of core.TriageStore, used in
// development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	senders   map[string]map[string]*core.SenderModel // userID -> senderEmail -> model
	trust     map[string]*core.TrustProfile
	queue     map[string]*core.ActionQueueItem
	events    map[string][]*core.BehaviorEvent
	snapshots []*core.UndoSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		senders: make(map[string]map[string]*core.SenderModel),
		trust:   make(map[string]*core.TrustProfile),
		queue:   make(map[string]*core.ActionQueueItem),
		events:  make(map[string][]*core.BehaviorEvent),
	}
}

func (s *MemoryStore) GetSender(ctx context.Context, userID, senderEmail string) (*core.SenderModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser, ok := s.senders[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	model, ok := byUser[strings.ToLower(senderEmail)]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *model
	return &copied, nil
}

func (s *MemoryStore) SaveSender(ctx context.Context, model *core.SenderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.senders[model.UserID]
	if !ok {
		byUser = make(map[string]*core.SenderModel)
		s.senders[model.UserID] = byUser
	}
	copied := *model
	byUser[strings.ToLower(model.SenderEmail)] = &copied
	return nil
}

func (s *MemoryStore) ListSenders(ctx context.Context, userID string) ([]*core.SenderModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := s.senders[userID]
	out := make([]*core.SenderModel, 0, len(byUser))
	for _, model := range byUser {
		copied := *model
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) GetTrustProfile(ctx context.Context, userID string) (*core.TrustProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.trust[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *MemoryStore) SaveTrustProfile(ctx context.Context, profile *core.TrustProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *profile
	s.trust[profile.UserID] = &copied
	return nil
}

func (s *MemoryStore) SaveQueueItem(ctx context.Context, item *core.ActionQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *item
	s.queue[item.ItemID] = &copied
	return nil
}

func (s *MemoryStore) GetQueueItem(ctx context.Context, itemID string) (*core.ActionQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.queue[itemID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *MemoryStore) ListQueueItems(ctx context.Context, userID string, status core.QueueStatus) ([]*core.ActionQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.ActionQueueItem
	for _, item := range s.queue {
		if item.UserID != userID {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		copied := *item
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) PendingUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var users []string
	for _, item := range s.queue {
		if item.Status != core.StatusPending {
			continue
		}
		if _, ok := seen[item.UserID]; ok {
			continue
		}
		seen[item.UserID] = struct{}{}
		users = append(users, item.UserID)
	}
	return users, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *core.BehaviorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.UserID] = append(s.events[event.UserID], event)
	return nil
}

func (s *MemoryStore) RecentEvents(ctx context.Context, userID string, limit int) ([]*core.BehaviorEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[userID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]*core.BehaviorEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot *core.UndoSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

// Snapshots returns all saved undo snapshots, newest last.
func (s *MemoryStore) Snapshots() []*core.UndoSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.UndoSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

// Close implements core.TriageStore; nothing to release.
func (s *MemoryStore) Close() error { return nil }
