package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTruncateTextShortInputUntouched(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	if got := tp.TruncateText("hello", 100); got != "hello" {
		t.Errorf("got %q, want input unchanged", got)
	}
	if got := tp.TruncateText("hello", 0); got != "hello" {
		t.Errorf("got %q, want input unchanged with no limit", got)
	}
}

func TestTruncateTextDoesNotSplitRunes(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// Each é is two bytes; cutting at 5 bytes lands mid-rune.
	text := "ééééé"
	got := tp.TruncateText(text, 5)
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "éé") {
		t.Errorf("unexpected truncation result: %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Errorf("truncation marker missing: %q", got)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	if got := tp.SanitizeUTF8("clean text"); got != "clean text" {
		t.Errorf("valid text altered: %q", got)
	}
	dirty := "bad\xff\xfebytes"
	got := tp.SanitizeUTF8(dirty)
	if !utf8.ValidString(got) {
		t.Errorf("sanitized text still invalid: %q", got)
	}
	if !strings.Contains(got, "bad") || !strings.Contains(got, "bytes") {
		t.Errorf("sanitizing dropped surrounding text: %q", got)
	}
}
