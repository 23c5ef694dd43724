package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeStore is a map-backed implementation of every persistence port,
// shared by the service tests.
type fakeStore struct {
	mu        sync.Mutex
	senders   map[string]map[string]*SenderModel
	trust     map[string]*TrustProfile
	queue     map[string]*ActionQueueItem
	events    []*BehaviorEvent
	snapshots []*UndoSnapshot

	saveSenderErr error
	getSenderErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		senders: make(map[string]map[string]*SenderModel),
		trust:   make(map[string]*TrustProfile),
		queue:   make(map[string]*ActionQueueItem),
	}
}

func (s *fakeStore) GetSender(ctx context.Context, userID, senderEmail string) (*SenderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getSenderErr != nil {
		return nil, s.getSenderErr
	}
	m, ok := s.senders[userID][senderEmail]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeStore) SaveSender(ctx context.Context, m *SenderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveSenderErr != nil {
		return s.saveSenderErr
	}
	if s.senders[m.UserID] == nil {
		s.senders[m.UserID] = make(map[string]*SenderModel)
	}
	copied := *m
	s.senders[m.UserID][m.SenderEmail] = &copied
	return nil
}

func (s *fakeStore) ListSenders(ctx context.Context, userID string) ([]*SenderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*SenderModel
	for _, m := range s.senders[userID] {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) GetTrustProfile(ctx context.Context, userID string) (*TrustProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.trust[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) SaveTrustProfile(ctx context.Context, p *TrustProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.trust[p.UserID] = &copied
	return nil
}

func (s *fakeStore) SaveQueueItem(ctx context.Context, item *ActionQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.queue[item.ItemID] = &copied
	return nil
}

func (s *fakeStore) GetQueueItem(ctx context.Context, itemID string) (*ActionQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) ListQueueItems(ctx context.Context, userID string, status QueueStatus) ([]*ActionQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ActionQueueItem
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

func (s *fakeStore) PendingUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var users []string
	for _, item := range s.queue {
		if item.Status != StatusPending {
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

func (s *fakeStore) AppendEvent(ctx context.Context, event *BehaviorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) RecentEvents(ctx context.Context, userID string, limit int) ([]*BehaviorEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*BehaviorEvent
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, snapshot *UndoSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *fakeStore) queuedItems() []*ActionQueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ActionQueueItem
	for _, item := range s.queue {
		copied := *item
		out = append(out, &copied)
	}
	return out
}

// fakeCache is a TTL-less PredictionCache for engine tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*PredictionResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[CacheKey]*PredictionResult)}
}

func (c *fakeCache) Get(key CacheKey) (*PredictionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.entries[key]
	return result, ok
}

func (c *fakeCache) Set(key CacheKey, result *PredictionResult) {
	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()
}

func (c *fakeCache) Delete(key CacheKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *fakeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// mockClassifier implements Classifier with overridable behavior and call
// counting.
type mockClassifier struct {
	ClassifyFunc       func(ctx context.Context, from, subject, body string) (*EmailClassification, error)
	ExtractActionsFunc func(ctx context.Context, from, subject, body string) ([]ExtractedAction, error)

	classifyCalls int64
}

func (m *mockClassifier) Classify(ctx context.Context, from, subject, body string) (*EmailClassification, error) {
	atomic.AddInt64(&m.classifyCalls, 1)
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, from, subject, body)
	}
	return DefaultClassification(), nil
}

func (m *mockClassifier) ExtractActions(ctx context.Context, from, subject, body string) ([]ExtractedAction, error) {
	if m.ExtractActionsFunc != nil {
		return m.ExtractActionsFunc(ctx, from, subject, body)
	}
	return nil, nil
}

func (m *mockClassifier) calls() int64 {
	return atomic.LoadInt64(&m.classifyCalls)
}

// fakeVIP pins a fixed set of addresses.
type fakeVIP struct {
	pinned map[string]bool
}

func (v *fakeVIP) IsVIP(from string) bool {
	return v.pinned[from]
}

// fakeActivity records audit calls.
type fakeActivity struct {
	mu          sync.Mutex
	resolutions int
	executions  int
	lastExecErr error
}

func (a *fakeActivity) LogResolution(result *PredictionResult, outcome Outcome) {
	a.mu.Lock()
	a.resolutions++
	a.mu.Unlock()
}

func (a *fakeActivity) LogAutoExecution(result *PredictionResult, err error) {
	a.mu.Lock()
	a.executions++
	a.lastExecErr = err
	a.mu.Unlock()
}
