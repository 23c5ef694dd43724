package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueItemTTL is how long a pending item waits for review before
// it expires.
const DefaultQueueItemTTL = 24 * time.Hour

// QueueService manages the action queue lifecycle. Every status change
// goes through the state machine on QueueStatus; illegal transitions are
// rejected so terminal items stay terminal.
type QueueService struct {
	store   QueueStore
	logger  *zap.Logger
	itemTTL time.Duration
	now     func() time.Time
}

// NewQueueService creates a queue service over the given store.
func NewQueueService(store QueueStore, logger *zap.Logger, itemTTL time.Duration) *QueueService {
	if itemTTL <= 0 {
		itemTTL = DefaultQueueItemTTL
	}
	return &QueueService{
		store:   store,
		logger:  logger,
		itemTTL: itemTTL,
		now:     time.Now,
	}
}

// Enqueue persists a freshly created pending item and stamps its expiry.
func (s *QueueService) Enqueue(ctx context.Context, item *ActionQueueItem) error {
	if item.Status != StatusPending {
		return fmt.Errorf("cannot enqueue item in status %q", item.Status)
	}
	item.ExpiresAt = s.now().Add(s.itemTTL)
	if err := s.store.SaveQueueItem(ctx, item); err != nil {
		return fmt.Errorf("failed to save queue item: %w", err)
	}
	s.logger.Debug("Queued action for review",
		zap.String("item_id", item.ItemID),
		zap.String("email_id", item.EmailID),
		zap.String("action", string(item.Prediction.Final.Action)))
	return nil
}

func (s *QueueService) transition(ctx context.Context, itemID string, next QueueStatus, errorMessage string) (*ActionQueueItem, error) {
	item, err := s.store.GetQueueItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("illegal queue transition %s -> %s for item %s", item.Status, next, itemID)
	}
	item.Status = next
	item.ErrorMessage = errorMessage
	item.UpdatedAt = s.now()
	if err := s.store.SaveQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save queue item: %w", err)
	}
	return item, nil
}

// Approve marks a pending item as approved by the user.
func (s *QueueService) Approve(ctx context.Context, itemID string) (*ActionQueueItem, error) {
	return s.transition(ctx, itemID, StatusApproved, "")
}

// Reject marks a pending item as rejected.
func (s *QueueService) Reject(ctx context.Context, itemID string) (*ActionQueueItem, error) {
	return s.transition(ctx, itemID, StatusRejected, "")
}

// MarkExecuted marks an approved item as executed.
func (s *QueueService) MarkExecuted(ctx context.Context, itemID string) (*ActionQueueItem, error) {
	return s.transition(ctx, itemID, StatusExecuted, "")
}

// MarkFailed marks a pending or approved item as failed with a message.
func (s *QueueService) MarkFailed(ctx context.Context, itemID, errorMessage string) (*ActionQueueItem, error) {
	return s.transition(ctx, itemID, StatusFailed, errorMessage)
}

// Pending lists a user's items still awaiting review.
func (s *QueueService) Pending(ctx context.Context, userID string) ([]*ActionQueueItem, error) {
	return s.store.ListQueueItems(ctx, userID, StatusPending)
}

// ExpirePending sweeps a user's pending items whose review window has
// passed. Returns the number of items expired.
func (s *QueueService) ExpirePending(ctx context.Context, userID string) (int, error) {
	items, err := s.store.ListQueueItems(ctx, userID, StatusPending)
	if err != nil {
		return 0, err
	}
	now := s.now()
	expired := 0
	for _, item := range items {
		if item.ExpiresAt.IsZero() || item.ExpiresAt.After(now) {
			continue
		}
		if _, err := s.transition(ctx, item.ItemID, StatusExpired, ""); err != nil {
			s.logger.Error("Failed to expire queue item",
				zap.Error(err), zap.String("item_id", item.ItemID))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("Expired stale queue items",
			zap.String("user_id", userID), zap.Int("count", expired))
	}
	return expired, nil
}

// ExpireAll sweeps pending items across every user that has any.
func (s *QueueService) ExpireAll(ctx context.Context) (int, error) {
	users, err := s.store.PendingUsers(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, userID := range users {
		n, err := s.ExpirePending(ctx, userID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
