// Package audit implements the activity log consumed by the product's
// activity feed: every resolution and auto-execution is recorded with the
// prediction id and confidence behind it.
package audit

import (
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// ZapActivityLogger writes activity events as structured log entries.
type ZapActivityLogger struct {
	logger *zap.Logger
}

// NewZapActivityLogger creates an activity logger over the given zap logger.
func NewZapActivityLogger(logger *zap.Logger) *ZapActivityLogger {
	return &ZapActivityLogger{logger: logger.Named("activity")}
}

// LogResolution records a human disposition of a prediction.
func (a *ZapActivityLogger) LogResolution(result *core.PredictionResult, outcome core.Outcome) {
	a.logger.Info("Prediction resolved",
		zap.String("prediction_id", result.PredictionID),
		zap.String("user_id", result.UserID),
		zap.String("email_id", result.EmailID),
		zap.String("action", string(result.Final.Action)),
		zap.Float64("confidence", result.Final.Confidence),
		zap.String("outcome", string(outcome)))
}

// LogAutoExecution records an auto-executed action and its result.
func (a *ZapActivityLogger) LogAutoExecution(result *core.PredictionResult, err error) {
	fields := []zap.Field{
		zap.String("prediction_id", result.PredictionID),
		zap.String("user_id", result.UserID),
		zap.String("email_id", result.EmailID),
		zap.String("action", string(result.Final.Action)),
		zap.Float64("confidence", result.Final.Confidence),
	}
	if err != nil {
		a.logger.Warn("Auto-execution failed", append(fields, zap.Error(err))...)
		return
	}
	a.logger.Info("Action auto-executed", fields...)
}
