package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDecayLambda is the exponential decay rate applied to sender
// recency. At 0.1 a sender retains ~90% weight after one day and ~37%
// after ten days of silence.
const DefaultDecayLambda = 0.1

// DefaultHistoryWindow is how many recent behavior events are kept in
// memory for inspection.
const DefaultHistoryWindow = 500

// Priors used to seed a sender model before any observation exists.
const (
	priorResponseRate    = 0.5
	priorArchiveRate     = 0.3
	priorDeleteRate      = 0.1
	priorImportanceScore = 0.5
	priorUrgencyScore    = 0.3
)

// BehaviorService owns all sender models and is the only component that
// mutates them. Every user action flows through RecordEvent, which applies
// a Laplace-smoothed Bayesian update to the sender's rates.
type BehaviorService struct {
	store  SenderStore
	events EventStore
	logger *zap.Logger

	decayLambda   float64
	historyWindow int

	mu     sync.Mutex
	recent []*BehaviorEvent

	// now is swappable for tests.
	now func() time.Time
}

// NewBehaviorService creates a behavior service over the given stores.
func NewBehaviorService(store SenderStore, events EventStore, logger *zap.Logger, decayLambda float64, historyWindow int) *BehaviorService {
	if decayLambda <= 0 {
		decayLambda = DefaultDecayLambda
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &BehaviorService{
		store:         store,
		events:        events,
		logger:        logger,
		decayLambda:   decayLambda,
		historyWindow: historyWindow,
		now:           time.Now,
	}
}

func senderDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// GetOrCreate returns the sender model for (userID, senderEmail), creating
// a fresh one seeded with priors if none exists yet.
func (s *BehaviorService) GetOrCreate(ctx context.Context, userID, senderEmail string) (*SenderModel, error) {
	model, err := s.store.GetSender(ctx, userID, senderEmail)
	if err == nil {
		return model, nil
	}
	if err != ErrNotFound {
		return nil, fmt.Errorf("failed to load sender model: %w", err)
	}

	now := s.now()
	model = &SenderModel{
		SenderID:        uuid.NewString(),
		SenderEmail:     strings.ToLower(senderEmail),
		SenderDomain:    senderDomain(senderEmail),
		UserID:          userID,
		ResponseRate:    priorResponseRate,
		ArchiveRate:     priorArchiveRate,
		DeleteRate:      priorDeleteRate,
		ImportanceScore: priorImportanceScore,
		UrgencyScore:    priorUrgencyScore,
		FirstSeen:       now,
		LastInteraction: now,
		LastUpdated:     now,
		DecayedWeight:   1.0,
	}
	if err := s.store.SaveSender(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to save new sender model: %w", err)
	}
	s.logger.Debug("Created sender model",
		zap.String("user_id", userID),
		zap.String("sender", model.SenderEmail))
	return model, nil
}

// RecordEvent records a user action for a sender and updates the model's
// smoothed rates. The event itself is retained in a bounded recent-history
// window and appended to the event store.
func (s *BehaviorService) RecordEvent(ctx context.Context, userID, emailID, senderEmail string, eventType EventType, features *ContextFeatures) (*SenderModel, error) {
	model, err := s.GetOrCreate(ctx, userID, senderEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	model.TotalEmails++

	switch eventType {
	case EventRespond:
		model.RespondedEmails++
	case EventArchive:
		model.ArchivedEmails++
	case EventDelete:
		model.DeletedEmails++
	case EventStar:
		model.StarredEmails++
	case EventUnstar:
		if model.StarredEmails > 0 {
			model.StarredEmails--
		}
	case EventIgnore:
		model.IgnoredEmails++
	}

	// Laplace smoothing keeps every rate strictly inside (0,1) even with
	// zero observations of a given kind.
	total := float64(model.TotalEmails)
	model.ResponseRate = (float64(model.RespondedEmails) + 1) / (total + 2)
	model.ArchiveRate = (float64(model.ArchivedEmails) + 1) / (total + 2)
	model.DeleteRate = (float64(model.DeletedEmails) + 1) / (total + 2)

	model.LastInteraction = now
	model.LastUpdated = now
	model.DecayedWeight = 1.0
	model.ImportanceScore = importance(model, 1.0)

	if err := s.store.SaveSender(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to save sender model: %w", err)
	}

	event := &BehaviorEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		EmailID:   emailID,
		SenderID:  model.SenderID,
		EventType: eventType,
		Timestamp: now,
		Features:  features,
	}
	if s.events != nil {
		if err := s.events.AppendEvent(ctx, event); err != nil {
			s.logger.Error("Failed to persist behavior event", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.recent = append(s.recent, event)
	if len(s.recent) > s.historyWindow {
		s.recent = s.recent[len(s.recent)-s.historyWindow:]
	}
	s.mu.Unlock()

	return model, nil
}

// importance computes the weighted importance score from a model's current
// statistics and the given decay weight.
func importance(m *SenderModel, decayed float64) float64 {
	volume := math.Min(float64(m.TotalEmails)/100.0, 1.0)
	return 0.4*m.ResponseRate + 0.3*m.StarRate() + 0.2*decayed + 0.1*volume
}

// DecayedWeightOf returns the read-time recency weight for a model without
// persisting it.
func (s *BehaviorService) DecayedWeightOf(m *SenderModel) float64 {
	days := s.now().Sub(m.LastInteraction).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	return math.Exp(-s.decayLambda * days)
}

// ImportanceOf recomputes the importance score with a fresh decay weight.
// Decay is never written back; it is applied only at query time.
func (s *BehaviorService) ImportanceOf(m *SenderModel) float64 {
	return importance(m, s.DecayedWeightOf(m))
}

// Rank returns the user's top senders ordered by VIP flag first, then
// freshly-decayed importance.
func (s *BehaviorService) Rank(ctx context.Context, userID string, limit int) ([]*SenderModel, error) {
	models, err := s.store.ListSenders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sender models: %w", err)
	}

	scores := make(map[string]float64, len(models))
	for _, m := range models {
		scores[m.SenderID] = s.ImportanceOf(m)
	}
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].IsVIP != models[j].IsVIP {
			return models[i].IsVIP
		}
		return scores[models[i].SenderID] > scores[models[j].SenderID]
	})

	if limit > 0 && len(models) > limit {
		models = models[:limit]
	}
	return models, nil
}

// MarkVIP flags or unflags a sender as VIP.
func (s *BehaviorService) MarkVIP(ctx context.Context, userID, senderEmail string, vip bool) error {
	model, err := s.GetOrCreate(ctx, userID, senderEmail)
	if err != nil {
		return err
	}
	model.IsVIP = vip
	model.LastUpdated = s.now()
	return s.store.SaveSender(ctx, model)
}

// RecentEvents returns up to limit events from the in-memory history
// window, newest last.
func (s *BehaviorService) RecentEvents(limit int) []*BehaviorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.recent)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*BehaviorEvent, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out
}
