// Package llm holds the prompt templates and response parsing shared by
// every classifier adapter. Parsing never fails: malformed model output
// degrades to the documented defaults, so only transport-level errors
// reach the caller.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/email-triage/internal/core"
)

// ClassifySystem is the system message for the classification call.
const ClassifySystem = "You are an email triage assistant. Respond only with JSON."

const classifyFormat = `Classify the following email.
Respond with a JSON object containing:
- category: one of "spam", "promotional", "newsletter", "automated", "personal", "work", "routine"
- intent: one of "request", "information", "scheduling", "transaction", "social"
- sentiment: one of "positive", "neutral", "negative"
- topics: array of short topic strings
- urgency: one of "low", "medium", "high"
- requires_response: boolean
- has_deadline: boolean
- confidence: number between 0 and 1
- is_spam: boolean
- is_phishing: boolean

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

const extractFormat = `Extract action items from the following email.
Respond with a JSON array; each element is an object containing:
- type: one of "reply", "schedule", "pay", "review", "task"
- description: short string
- due_date: ISO date string or empty if none
- priority: one of "low", "medium", "high"
- assignees: array of names or addresses
- confidence: number between 0 and 1

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON array and nothing else. Use [] if there are no action items.`

// ClassifyPrompt renders the classification prompt for an email.
func ClassifyPrompt(from, subject, body string) string {
	return fmt.Sprintf(classifyFormat, from, subject, body)
}

// ExtractPrompt renders the action-extraction prompt for an email.
func ExtractPrompt(from, subject, body string) string {
	return fmt.Sprintf(extractFormat, from, subject, body)
}

// extractDelimited returns the substring between the first open and last
// close delimiter, or "" when no balanced pair exists.
func extractDelimited(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// ParseClassification parses the model's classification response, falling
// back to core.DefaultClassification when the output is unusable.
func ParseClassification(text string) *core.EmailClassification {
	var c core.EmailClassification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		jsonStr := extractDelimited(text, '{', '}')
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &c) != nil {
			return core.DefaultClassification()
		}
	}
	if c.Category == "" {
		return core.DefaultClassification()
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return &c
}

// ParseActions parses the model's action-extraction response, falling back
// to an empty list when the output is unusable.
func ParseActions(text string) []core.ExtractedAction {
	var actions []core.ExtractedAction
	if err := json.Unmarshal([]byte(text), &actions); err != nil {
		jsonStr := extractDelimited(text, '[', ']')
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &actions) != nil {
			return nil
		}
	}
	return actions
}
