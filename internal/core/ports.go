package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// Classifier defines the interface to the external LLM classification
// service. Implementations must degrade to documented defaults on
// malformed model output; only transport-level failures surface as errors.
type Classifier interface {
	// Classify performs semantic classification of an email.
	Classify(ctx context.Context, from, subject, body string) (*EmailClassification, error)

	// ExtractActions pulls action items out of an email.
	ExtractActions(ctx context.Context, from, subject, body string) ([]ExtractedAction, error)
}

// SenderStore persists per-sender behavior models.
type SenderStore interface {
	GetSender(ctx context.Context, userID, senderEmail string) (*SenderModel, error)
	SaveSender(ctx context.Context, model *SenderModel) error
	ListSenders(ctx context.Context, userID string) ([]*SenderModel, error)
}

// TrustStore persists per-user trust profiles.
type TrustStore interface {
	GetTrustProfile(ctx context.Context, userID string) (*TrustProfile, error)
	SaveTrustProfile(ctx context.Context, profile *TrustProfile) error
}

// QueueStore persists action queue items for the review UI.
type QueueStore interface {
	SaveQueueItem(ctx context.Context, item *ActionQueueItem) error
	GetQueueItem(ctx context.Context, itemID string) (*ActionQueueItem, error)
	ListQueueItems(ctx context.Context, userID string, status QueueStatus) ([]*ActionQueueItem, error)
	PendingUsers(ctx context.Context) ([]string, error)
}

// EventStore persists behavior events.
type EventStore interface {
	AppendEvent(ctx context.Context, event *BehaviorEvent) error
	RecentEvents(ctx context.Context, userID string, limit int) ([]*BehaviorEvent, error)
}

// UndoStore persists pre-action snapshots taken before auto-execution.
type UndoStore interface {
	SaveSnapshot(ctx context.Context, snapshot *UndoSnapshot) error
}

// TriageStore combines every repository the engine needs; a single backend
// (memory, sqlite, mysql) implements all of them.
type TriageStore interface {
	SenderStore
	TrustStore
	QueueStore
	EventStore
	UndoStore

	// Close releases any underlying resources.
	Close() error
}

// CacheKey identifies a cached prediction.
type CacheKey struct {
	UserID  string
	EmailID string
}

// PredictionCache is an in-process cache of prediction results with TTL
// and bounded size. Entries self-heal via expiry; no invalidation beyond
// Delete and the engine's forceRefresh path is required.
type PredictionCache interface {
	Get(key CacheKey) (*PredictionResult, bool)
	Set(key CacheKey, result *PredictionResult)
	Delete(key CacheKey)
	Len() int
}

// VIPChecker reports whether a sender address belongs to a configured VIP
// domain whose mail must never be auto-archived or auto-deleted.
type VIPChecker interface {
	IsVIP(from string) bool
}

// ActivityLogger records resolution and auto-execution events for the
// audit feed.
type ActivityLogger interface {
	LogResolution(result *PredictionResult, outcome Outcome)
	LogAutoExecution(result *PredictionResult, err error)
}
