// Package detect holds the post-stream analyzers. They run once over the
// fully accumulated text after the provider stream finishes, never
// incrementally, and they never fail a generation: a detector that cannot
// classify anything produces no suggestion.
package detect

import (
	"regexp"
	"strings"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// variantHeading matches the delimiters the composition prompts ask the
// model to use, plus the looser forms models actually produce.
var variantHeading = regexp.MustCompile(`(?mi)^\s*(?:#{1,3}\s*|\*\*)?\s*(variant|option|version)\s+([A-Z]|\d+)\b[:.]?\s*(?:\*\*)?\s*(.*)$`)

var subjectLine = regexp.MustCompile(`(?mi)^\s*(?:\*\*)?subject(?:\s*line)?(?:\*\*)?\s*[:：]\s*(.+)$`)

var emailSignals = []string{
	"preview text", "preheader", "call to action", "cta", "unsubscribe",
	"hero section", "body copy", "sign-off", "p.s.",
}

var greetings = []string{
	"hi ", "hey ", "hello ", "dear ", "hi,", "hey,", "hello,",
}

// DetectArtifact classifies finished text as a structured document. Only
// medium and high confidence results are returned; anything weaker yields
// nil. It never returns an error: unclassifiable text is simply not an
// artifact.
func DetectArtifact(text string) *chatModels.ArtifactSuggestion {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	variants := parseVariants(trimmed)

	if sug := detectSubjectLines(trimmed, variants); sug != nil {
		return sug
	}

	score := emailScore(trimmed)
	if len(variants) >= 2 {
		score += 2
	}

	var confidence chatModels.Confidence
	switch {
	case score >= 4:
		confidence = chatModels.ConfidenceHigh
	case score >= 2:
		confidence = chatModels.ConfidenceMedium
	default:
		return nil
	}

	return &chatModels.ArtifactSuggestion{
		Kind:       chatModels.ArtifactKindEmail,
		Confidence: confidence,
		Title:      artifactTitle(trimmed),
		Variants:   variants,
	}
}

// emailScore counts independent signals that the text is email copy rather
// than conversational prose.
func emailScore(text string) int {
	lower := strings.ToLower(text)
	score := 0

	if subjectLine.MatchString(text) {
		score += 2
	}
	for _, signal := range emailSignals {
		if strings.Contains(lower, signal) {
			score++
			break
		}
	}
	for _, g := range greetings {
		if strings.Contains(lower, "\n"+g) || strings.HasPrefix(lower, g) {
			score++
			break
		}
	}
	// Email copy is multi-paragraph; a one-liner is almost never a draft.
	if strings.Count(text, "\n\n") >= 2 {
		score++
	}
	return score
}

// detectSubjectLines recognizes the "list of subject line options" shape:
// several short subject-prefixed lines and little else.
func detectSubjectLines(text string, variants []chatModels.EmailVariant) *chatModels.ArtifactSuggestion {
	matches := subjectLine.FindAllStringSubmatch(text, -1)
	if len(matches) < 3 {
		return nil
	}
	// A full email with one subject plus body has far more non-subject lines
	// than a bare list of options.
	nonEmpty := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if len(matches)*2 < nonEmpty {
		return nil
	}
	return &chatModels.ArtifactSuggestion{
		Kind:       chatModels.ArtifactKindSubject,
		Confidence: chatModels.ConfidenceHigh,
		Title:      "Subject line options",
		Variants:   variants,
	}
}

// parseVariants extracts labeled alternatives delimited by Variant/Option/
// Version headings, in document order. Fewer than two headings means the
// text is a single composition and the result is nil; degrading to a
// single variant is the caller's concern, not a failure.
func parseVariants(text string) []chatModels.EmailVariant {
	locs := variantHeading.FindAllStringSubmatchIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}

	variants := make([]chatModels.EmailVariant, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		label := text[loc[2]:loc[3]] + " " + text[loc[4]:loc[5]]
		variants = append(variants, chatModels.EmailVariant{
			Label:   label,
			Content: content,
		})
	}
	return variants
}

// artifactTitle lifts the first subject line as the artifact title when one
// exists, else the first non-heading line, truncated.
func artifactTitle(text string) string {
	if m := subjectLine.FindStringSubmatch(text); m != nil {
		return truncateTitle(strings.TrimSpace(m[1]))
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "#* "))
		if line != "" {
			return truncateTitle(line)
		}
	}
	return ""
}

func truncateTitle(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "…"
}
