package llm

import (
	"strings"
	"testing"
)

func TestParseClassificationValidJSON(t *testing.T) {
	c := ParseClassification(`{"category":"promotional","intent":"transaction","urgency":"low","confidence":0.82,"is_spam":false}`)
	if c.Category != "promotional" {
		t.Errorf("category = %s, want promotional", c.Category)
	}
	if c.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", c.Confidence)
	}
}

func TestParseClassificationEmbeddedInProse(t *testing.T) {
	text := "Sure! Here is the classification:\n```json\n{\"category\":\"work\",\"urgency\":\"high\",\"confidence\":0.9}\n```\nLet me know if you need more."
	c := ParseClassification(text)
	if c.Category != "work" || c.Urgency != "high" {
		t.Errorf("embedded JSON not extracted: %+v", c)
	}
}

func TestParseClassificationFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"garbage", "I cannot classify this email."},
		{"empty", ""},
		{"missing category", `{"urgency":"high","confidence":0.9}`},
		{"broken json", `{"category":"work",`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseClassification(tt.text)
			if c.Category != "routine" || c.Confidence != 0.3 {
				t.Errorf("expected the default classification, got %+v", c)
			}
		})
	}
}

func TestParseClassificationClampsConfidence(t *testing.T) {
	if c := ParseClassification(`{"category":"work","confidence":1.7}`); c.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", c.Confidence)
	}
	if c := ParseClassification(`{"category":"work","confidence":-0.2}`); c.Confidence != 0 {
		t.Errorf("confidence = %v, want clamped to 0", c.Confidence)
	}
}

func TestParseActions(t *testing.T) {
	actions := ParseActions(`[{"type":"reply","description":"confirm the meeting","priority":"high","confidence":0.8}]`)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if actions[0].Type != "reply" {
		t.Errorf("type = %s, want reply", actions[0].Type)
	}
}

func TestParseActionsEmbeddedAndEmpty(t *testing.T) {
	actions := ParseActions("The action items are: [{\"type\":\"pay\",\"description\":\"invoice 42\"}] as requested.")
	if len(actions) != 1 || actions[0].Type != "pay" {
		t.Errorf("embedded array not extracted: %+v", actions)
	}

	if actions := ParseActions("[]"); len(actions) != 0 {
		t.Errorf("empty array produced %d actions", len(actions))
	}
	if actions := ParseActions("no actions here"); actions != nil {
		t.Errorf("garbage produced %+v", actions)
	}
}

func TestPromptsIncludeEmailFields(t *testing.T) {
	prompt := ClassifyPrompt("a@b.example", "Lunch?", "Are you free at noon?")
	for _, needle := range []string{"a@b.example", "Lunch?", "Are you free at noon?"} {
		if !strings.Contains(prompt, needle) {
			t.Errorf("classify prompt missing %q", needle)
		}
	}
	if !strings.Contains(ExtractPrompt("a@b.example", "Lunch?", "noon"), "action items") {
		t.Error("extract prompt missing instructions")
	}
}
