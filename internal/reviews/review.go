package reviews

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"paradiso/internal/normalize"
)

// State is the processing state of a review.
type State string

const (
	StateUnprocessed State = "unprocessed"
	StateProcessed   State = "processed"
)

// Tags written by the engine.
const (
	// TagAugmented marks a confirmed catalog match and excludes the review
	// from every future pass.
	TagAugmented = "augmented"
	// TagProcessed marks any terminal outcome.
	TagProcessed = "processed"
	// TagLowConfidence and TagMediumConfidence record the outcome class so
	// hosted filters can select medium reviews for revisiting.
	TagLowConfidence    = "low_confidence"
	TagMediumConfidence = "medium_confidence"
)

// Review is one review record.
type Review struct {
	ID           string
	Text         string
	Summary      string
	State        State
	Tags         []string
	Augmentation *Augmentation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasText reports whether the review carries any text to reconcile.
func (r Review) HasText() bool {
	return strings.TrimSpace(r.Text) != "" || strings.TrimSpace(r.Summary) != ""
}

// Augmented reports whether the review carries the confirmed-match tag.
func (r Review) Augmented() bool {
	return slices.Contains(r.Tags, TagAugmented)
}

// Augmentation is the persisted reconciliation outcome of a review.
type Augmentation struct {
	Confidence  normalize.Confidence
	Title       string
	Director    string
	Actors      []string
	Year        *int
	Query       string
	MovieID     string
	ProcessedAt int64
}

// NewLowAugmentation records that no movie could be guessed.
func NewLowAugmentation(now time.Time) Augmentation {
	return Augmentation{Confidence: normalize.ConfidenceLow, ProcessedAt: now.Unix()}
}

// NewMediumAugmentation records a usable guess with no confirmed match.
func NewMediumAugmentation(guess normalize.Guess, now time.Time) Augmentation {
	return Augmentation{
		Confidence:  normalize.ConfidenceMedium,
		Title:       guess.Title,
		Director:    guess.Director,
		Actors:      slices.Clone(guess.Actors),
		Year:        guess.Year,
		Query:       guess.Query,
		ProcessedAt: now.Unix(),
	}
}

// NewHighAugmentation records a confirmed match to movieID.
func NewHighAugmentation(guess normalize.Guess, movieID string, now time.Time) Augmentation {
	aug := NewMediumAugmentation(guess, now)
	aug.Confidence = normalize.ConfidenceHigh
	aug.MovieID = movieID
	return aug
}

// Tags returns the tags a store adds when this augmentation is written.
// tag is the caller's extra marker (TagAugmented for a match) and may be empty.
func (a Augmentation) Tags(tag string) []string {
	tags := []string{TagProcessed}
	switch a.Confidence {
	case normalize.ConfidenceLow:
		tags = append(tags, TagLowConfidence)
	case normalize.ConfidenceMedium:
		tags = append(tags, TagMediumConfidence)
	}
	if tag = strings.TrimSpace(tag); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

// Fields returns the augmentation in its stored shape. Low outcomes carry
// only confidence and processed_at; medium adds the guess with nulls for
// unknown values; high adds movie_id.
func (a Augmentation) Fields() map[string]any {
	fields := map[string]any{
		"confidence":   string(a.Confidence),
		"processed_at": a.ProcessedAt,
	}
	if a.Confidence == normalize.ConfidenceLow {
		return fields
	}
	var director any
	if a.Director != "" {
		director = a.Director
	}
	var year any
	if a.Year != nil {
		year = *a.Year
	}
	actors := a.Actors
	if actors == nil {
		actors = []string{}
	}
	fields["title"] = a.Title
	fields["director"] = director
	fields["actors"] = actors
	fields["year"] = year
	fields["query"] = a.Query
	if a.Confidence == normalize.ConfidenceHigh {
		fields["movie_id"] = a.MovieID
	}
	return fields
}

// Canonical serializes the augmentation as RFC 8785 canonical JSON so equal
// outcomes produce equal bytes.
func (a Augmentation) Canonical() ([]byte, error) {
	raw, err := json.Marshal(a.Fields())
	if err != nil {
		return nil, fmt.Errorf("encode augmentation: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize augmentation: %w", err)
	}
	return canonical, nil
}

type augmentationWire struct {
	Confidence  string   `json:"confidence"`
	Title       *string  `json:"title"`
	Director    *string  `json:"director"`
	Actors      []string `json:"actors"`
	Year        *int     `json:"year"`
	Query       *string  `json:"query"`
	MovieID     *string  `json:"movie_id"`
	ProcessedAt int64    `json:"processed_at"`
}

// ParseAugmentation decodes a stored augmentation.
func ParseAugmentation(data []byte) (*Augmentation, error) {
	var wire augmentationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode augmentation: %w", err)
	}
	return wire.augmentation(), nil
}

func (w augmentationWire) augmentation() *Augmentation {
	return &Augmentation{
		Confidence:  normalize.Confidence(strings.ToLower(strings.TrimSpace(w.Confidence))),
		Title:       deref(w.Title),
		Director:    deref(w.Director),
		Actors:      w.Actors,
		Year:        w.Year,
		Query:       deref(w.Query),
		MovieID:     deref(w.MovieID),
		ProcessedAt: w.ProcessedAt,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// MergeTags returns existing plus added, deduplicated, in first-seen order.
func MergeTags(existing []string, added ...string) []string {
	merged := make([]string, 0, len(existing)+len(added))
	for _, tag := range slices.Concat(existing, added) {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(merged, tag) {
			continue
		}
		merged = append(merged, tag)
	}
	return merged
}

// StripEngineTags removes every tag the engine writes.
func StripEngineTags(tags []string) []string {
	kept := make([]string, 0, len(tags))
	for _, tag := range tags {
		switch tag {
		case TagAugmented, TagProcessed, TagLowConfidence, TagMediumConfidence:
			continue
		}
		kept = append(kept, tag)
	}
	return kept
}

func stripConfidenceTags(tags []string) []string {
	kept := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == TagLowConfidence || tag == TagMediumConfidence {
			continue
		}
		kept = append(kept, tag)
	}
	return kept
}
