package detect

import (
	"strings"
	"testing"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

const sampleEmail = `Subject: Your cart misses you

Hi Sarah,

We noticed you left a few things behind. Your picks are still waiting,
and we saved them just for you.

Come back and finish checking out before they sell out.

Shop now and enjoy free shipping on your order.

Unsubscribe at any time.`

const sampleVariants = `Here are three options for your welcome email.

## Variant A: The warm welcome

Subject: Welcome to the family

Hi there, thanks for joining us.

## Variant B: The bold offer

Subject: Your 15% off is inside

Don't wait, your discount expires soon.

## Variant C: The story

Subject: How it all started

We began in a garage with one idea.`

func TestDetectEmailArtifact(t *testing.T) {
	sug := DetectArtifact(sampleEmail)
	if sug == nil {
		t.Fatal("expected an artifact suggestion for email-shaped text")
	}
	if sug.Kind != chatModels.ArtifactKindEmail {
		t.Errorf("kind = %q, want %q", sug.Kind, chatModels.ArtifactKindEmail)
	}
	if sug.Confidence == chatModels.ConfidenceLow {
		t.Error("low confidence results must not be surfaced")
	}
	if sug.Title != "Your cart misses you" {
		t.Errorf("title = %q, want subject line", sug.Title)
	}
}

func TestDetectVariants(t *testing.T) {
	sug := DetectArtifact(sampleVariants)
	if sug == nil {
		t.Fatal("expected an artifact suggestion for multi-variant text")
	}
	if len(sug.Variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(sug.Variants))
	}
	wantLabels := []string{"Variant A", "Variant B", "Variant C"}
	for i, v := range sug.Variants {
		if v.Label != wantLabels[i] {
			t.Errorf("variant %d label = %q, want %q", i, v.Label, wantLabels[i])
		}
		if v.Content == "" {
			t.Errorf("variant %d has empty content", i)
		}
	}
	if !strings.Contains(sug.Variants[1].Content, "15% off") {
		t.Errorf("variant B content wrong: %q", sug.Variants[1].Content)
	}
}

func TestVariantParseFailureDegradesToSingle(t *testing.T) {
	// Email-shaped but no variant headings: still detected, zero variants.
	sug := DetectArtifact(sampleEmail)
	if sug == nil {
		t.Fatal("expected detection")
	}
	if len(sug.Variants) != 0 {
		t.Errorf("variants = %d, want 0 for undelimited text", len(sug.Variants))
	}
}

func TestSubjectLineList(t *testing.T) {
	text := `Subject: Back in stock
Subject: Your favorites returned
Subject: Don't miss the restock
Subject: They're back`

	sug := DetectArtifact(text)
	if sug == nil {
		t.Fatal("expected subject-line suggestion")
	}
	if sug.Kind != chatModels.ArtifactKindSubject {
		t.Errorf("kind = %q, want %q", sug.Kind, chatModels.ArtifactKindSubject)
	}
}

func TestConversationalTextNotDetected(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  "},
		{"short answer", "Sure, I can help with that. What tone are you going for?"},
		{"plain prose", "The campaign performed well last quarter.\nOpen rates were up."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sug := DetectArtifact(tt.text); sug != nil {
				t.Errorf("DetectArtifact() = %+v, want nil", sug)
			}
		})
	}
}

func TestDetectorNeverPanics(t *testing.T) {
	inputs := []string{
		strings.Repeat("Variant A", 10000),
		"Subject:",
		"## Variant",
		string([]byte{0xff, 0xfe, 0x00}),
	}
	for _, in := range inputs {
		DetectArtifact(in) // must not panic
	}
}
