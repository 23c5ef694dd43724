package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultLLMTimeout bounds a single Tier-3 call.
const DefaultLLMTimeout = 20 * time.Second

// Tier3Predictor adapts the external LLM classifier into a tier
// prediction. Every failure mode — transport error, timeout, open circuit
// breaker — degrades to an absent prediction (nil); the ensemble treats
// that identically to "LLM not invoked". Calls are single-attempt: a
// failed email is simply re-attempted on its next natural prediction cycle.
type Tier3Predictor struct {
	classifier Classifier
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
	logger     *zap.Logger
}

// NewTier3Predictor wraps a classifier with a per-call timeout and a
// circuit breaker that sheds load after repeated consecutive failures.
func NewTier3Predictor(classifier Classifier, logger *zap.Logger, timeout time.Duration) *Tier3Predictor {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-classifier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Classifier circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Tier3Predictor{
		classifier: classifier,
		breaker:    breaker,
		timeout:    timeout,
		logger:     logger,
	}
}

type tier3Outcome struct {
	classification *EmailClassification
	actions        []ExtractedAction
}

// Predict runs the two classifier calls and maps the classification to an
// action via the fixed decision table. A nil return means "tier3 absent".
func (p *Tier3Predictor) Predict(ctx context.Context, email *Email) *TierPrediction {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.breaker.Execute(func() (interface{}, error) {
		classification, err := p.classifier.Classify(ctx, email.From, email.Subject, email.Body)
		if err != nil {
			return nil, err
		}

		// Action extraction is best-effort; a failure here must not
		// discard the classification.
		actions, err := p.classifier.ExtractActions(ctx, email.From, email.Subject, email.Body)
		if err != nil {
			p.logger.Debug("Action extraction failed, continuing without actions",
				zap.Error(err), zap.String("email_id", email.ID))
			actions = nil
		}
		return &tier3Outcome{classification: classification, actions: actions}, nil
	})
	if err != nil {
		p.logger.Warn("Tier-3 prediction unavailable",
			zap.Error(err),
			zap.String("email_id", email.ID))
		return nil
	}

	outcome := res.(*tier3Outcome)
	action, confidence := mapClassification(outcome.classification)

	return &TierPrediction{
		Tier:       TierNameLLM,
		Action:     action,
		Confidence: confidence,
		Reasoning:  tier3Reasoning(outcome.classification, outcome.actions, action),
		Factors: map[string]float64{
			"classificationConfidence": outcome.classification.Confidence,
			"actionCount":              float64(len(outcome.actions)),
		},
	}
}

// mapClassification applies the fixed decision table from classification
// to predicted action. Rows are evaluated top to bottom.
func mapClassification(c *EmailClassification) (Action, float64) {
	switch {
	case c.IsSpam || c.Category == "spam":
		return ActionDelete, 0.9
	case c.Category == "promotional" || c.Category == "newsletter":
		return ActionArchive, 0.7
	case c.Urgency == "high" || c.RequiresResponse:
		return ActionKeep, 0.8
	case c.Category == "automated":
		return ActionArchive, 0.6
	default:
		return ActionKeep, c.Confidence
	}
}

func tier3Reasoning(c *EmailClassification, actions []ExtractedAction, action Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classified as %s (%s intent, %s urgency); suggesting %s.", c.Category, c.Intent, c.Urgency, action)
	if c.IsSpam {
		b.WriteString(" Flagged as spam.")
	}
	if c.IsPhishing {
		b.WriteString(" Possible phishing.")
	}
	if n := len(actions); n == 1 {
		b.WriteString(" 1 action item found.")
	} else if n > 1 {
		fmt.Fprintf(&b, " %d action items found.", n)
	}
	if c.HasDeadline {
		b.WriteString(" A deadline is mentioned.")
	}
	return b.String()
}
