package core

import (
	"time"
)

// Email represents an incoming email record as supplied by the mail layer.
type Email struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	IsStarred  bool
	ReceivedAt time.Time
	Headers    map[string][]string
}

// Action is a predicted handling action for an email.
type Action string

const (
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
	ActionKeep    Action = "keep"
	ActionStar    Action = "star"
	ActionSnooze  Action = "snooze"
)

// EventType identifies a user behavior event.
type EventType string

const (
	EventRead    EventType = "read"
	EventRespond EventType = "respond"
	EventArchive EventType = "archive"
	EventDelete  EventType = "delete"
	EventStar    EventType = "star"
	EventUnstar  EventType = "unstar"
	EventSnooze  EventType = "snooze"
	EventIgnore  EventType = "ignore"
)

// ContextFeatures captures the situation in which a behavior event occurred.
type ContextFeatures struct {
	HourOfDay       int
	IsWeekend       bool
	BodyLength      int
	AttachmentCount int
	ThreadDepth     int
	RecipientCount  int
}

// BehaviorEvent is an immutable record of a single user action on an email.
// Events update sender models but are retained independently of them.
type BehaviorEvent struct {
	EventID    string
	UserID     string
	EmailID    string
	SenderID   string
	EventType  EventType
	Timestamp  time.Time
	DurationMs int64
	Features   *ContextFeatures
}

// SenderModel holds the per-sender Bayesian statistics for one user.
// Rates are always derived by Laplace-smoothed updates, never set directly,
// and TotalEmails is monotonically non-decreasing. Models accumulate
// forever; there is no deletion path.
type SenderModel struct {
	SenderID     string
	SenderEmail  string
	SenderDomain string
	UserID       string

	TotalEmails     int
	RespondedEmails int
	ArchivedEmails  int
	DeletedEmails   int
	StarredEmails   int
	IgnoredEmails   int

	ResponseRate float64
	ArchiveRate  float64
	DeleteRate   float64

	ImportanceScore float64
	UrgencyScore    float64

	FirstSeen       time.Time
	LastInteraction time.Time
	LastUpdated     time.Time

	DecayedWeight float64
	IsVIP         bool
}

// StarRate returns the fraction of this sender's emails the user starred.
func (m *SenderModel) StarRate() float64 {
	if m.TotalEmails == 0 {
		return 0
	}
	return float64(m.StarredEmails) / float64(m.TotalEmails)
}

// TrustStage is the user's current level of earned autonomy.
type TrustStage string

const (
	StageTrainingWheels     TrustStage = "training_wheels"
	StageBuildingConfidence TrustStage = "building_confidence"
	StageEarnedAutonomy     TrustStage = "earned_autonomy"
)

// TrustProfile tracks one user's approval history and the confidence bar
// currently required for auto-execution. The stage only ever advances.
type TrustProfile struct {
	UserID string

	TotalInteractions int
	ApprovedActions   int
	RejectedActions   int
	ModifiedActions   int

	Stage                TrustStage
	TrustScore           float64
	AutoApproveThreshold float64
	SuggestionThreshold  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outcome is the user's disposition of a suggested or executed action.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeModified Outcome = "modified"
)

// TierPrediction is one tier's vote: an action, a confidence, and the
// factors that produced it.
type TierPrediction struct {
	Tier       string
	Action     Action
	Confidence float64
	Reasoning  string
	Factors    map[string]float64
}

// EnsembleWeights are the per-tier contribution factors. After
// normalization they always sum to 1.0.
type EnsembleWeights struct {
	Tier1 float64
	Tier2 float64
	Tier3 float64
}

// Sum returns the total of all three weights.
func (w EnsembleWeights) Sum() float64 {
	return w.Tier1 + w.Tier2 + w.Tier3
}

// FinalPrediction is the combined decision emitted by the ensemble.
type FinalPrediction struct {
	Action           Action
	Confidence       float64
	Reasoning        string
	RequiresApproval bool
}

// PredictionResult is the full record of one predict() call. It is created
// once, cached, and later mutated only to mark resolution.
type PredictionResult struct {
	PredictionID string
	EmailID      string
	ThreadID     string
	UserID       string

	Tier1 *TierPrediction
	Tier2 *TierPrediction // reserved for a future tier, always nil
	Tier3 *TierPrediction

	Final   FinalPrediction
	Weights EnsembleWeights

	Timestamp    time.Time
	IsResolved   bool
	UserResponse Outcome
}

// QueueStatus is the lifecycle state of an ActionQueueItem.
type QueueStatus string

const (
	StatusPending  QueueStatus = "pending"
	StatusApproved QueueStatus = "approved"
	StatusRejected QueueStatus = "rejected"
	StatusExecuted QueueStatus = "executed"
	StatusFailed   QueueStatus = "failed"
	StatusExpired  QueueStatus = "expired"
)

// queueTransitions is the allowed state machine:
// pending -> approved -> executed; pending -> rejected; pending -> expired;
// pending|approved -> failed. Everything else is terminal.
var queueTransitions = map[QueueStatus][]QueueStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusExpired, StatusFailed},
	StatusApproved: {StatusExecuted, StatusFailed},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	for _, allowed := range queueTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s QueueStatus) IsTerminal() bool {
	return len(queueTransitions[s]) == 0
}

// ActionQueueItem wraps a prediction awaiting or having received human
// disposition, with enough display metadata for a review UI.
type ActionQueueItem struct {
	ItemID    string
	AccountID string
	UserID    string
	EmailID   string

	Prediction *PredictionResult

	From    string
	Subject string

	Status       QueueStatus
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// EmailClassification is the structured result of the LLM classify call.
type EmailClassification struct {
	Category         string   `json:"category"`
	Intent           string   `json:"intent"`
	Sentiment        string   `json:"sentiment"`
	Topics           []string `json:"topics"`
	Urgency          string   `json:"urgency"`
	RequiresResponse bool     `json:"requires_response"`
	HasDeadline      bool     `json:"has_deadline"`
	Confidence       float64  `json:"confidence"`
	IsSpam           bool     `json:"is_spam"`
	IsPhishing       bool     `json:"is_phishing"`
}

// DefaultClassification is the documented fallback used when the model
// returns output that cannot be parsed.
func DefaultClassification() *EmailClassification {
	return &EmailClassification{
		Category:   "routine",
		Intent:     "information",
		Sentiment:  "neutral",
		Urgency:    "low",
		Confidence: 0.3,
	}
}

// ExtractedAction is a single action item pulled out of an email body.
type ExtractedAction struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date,omitempty"`
	Priority    string   `json:"priority"`
	Assignees   []string `json:"assignees"`
	Confidence  float64  `json:"confidence"`
}

// UndoSnapshot records the pre-action state of an email so an
// auto-executed action can be reversed.
type UndoSnapshot struct {
	SnapshotID string
	UserID     string
	EmailID    string
	Action     Action
	PriorState map[string]string
	TakenAt    time.Time
}
