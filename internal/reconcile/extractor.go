package reconcile

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"paradiso/internal/normalize"
	"paradiso/internal/retry"
	"paradiso/internal/reviews"
	"paradiso/internal/services"
	"paradiso/internal/textgen"
)

const stageExtract = "extract"

// Extractor guesses the movie a review discusses.
type Extractor struct {
	backend textgen.Backend
	policy  retry.Policy
}

// NewExtractor builds an extraction stage over backend.
func NewExtractor(backend textgen.Backend, policy retry.Policy) *Extractor {
	return &Extractor{backend: backend, policy: policy}
}

// Extract returns the normalized guess for review. Malformed backend output
// degrades to the low-confidence marker; only backend failures that outlast
// the retry policy are returned as errors.
func (e *Extractor) Extract(ctx context.Context, review reviews.Review) (normalize.Guess, error) {
	req := textgen.Request{
		Prompt: GuessPrompt,
		Query:  ReviewBody(review),
		Scope:  []string{review.ID},
		Source: textgen.SourceReviews,
	}
	var raw string
	err := e.policy.Do(services.WithStage(ctx, stageExtract), stageExtract, func(ctx context.Context) error {
		out, genErr := e.backend.Generate(ctx, req)
		if genErr != nil {
			return genErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return normalize.Guess{}, err
	}
	return normalize.Extraction(raw), nil
}

// ReviewBody renders the text sent for extraction.
func ReviewBody(review reviews.Review) string {
	text := PlainText(review.Text)
	summary := PlainText(review.Summary)
	if summary != "" {
		return "Review Summary: " + summary + "\n\nFull Review: " + text
	}
	return "Full Review: " + text
}

// PlainText strips markup from scraped review text and collapses blank runs.
// Text without tags is returned trimmed.
func PlainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "<") || !strings.Contains(raw, ">") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	lines := strings.Split(doc.Text(), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
