package normalize

import "strings"

// Confidence classifies how certain the engine is about a review's movie.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// MaxQueryLength bounds a search query in runes.
const MaxQueryLength = 300

// Plausible release years.
const (
	MinYear = 1870
	MaxYear = 2100
)

// Guess is the movie identity inferred from one review. A guess whose
// Confidence is low, or whose Query is blank, is not usable for search.
type Guess struct {
	Title      string
	Director   string
	Actors     []string
	Year       *int
	Query      string
	Confidence Confidence
}

// LowConfidence returns the low-confidence marker.
func LowConfidence() Guess {
	return Guess{Confidence: ConfidenceLow}
}

// Usable reports whether the guess may proceed to candidate search.
func (g Guess) Usable() bool {
	return g.Confidence != ConfidenceLow && strings.TrimSpace(g.Query) != ""
}

// AbstainToken is the literal a confirmation reply uses to abstain.
const AbstainToken = "NOT_SURE"

// Decision is the interpreted confirmation reply: one catalog object ID, or
// abstention.
type Decision struct {
	ObjectID string
}

// Abstain returns the abstention decision.
func Abstain() Decision {
	return Decision{}
}

// Abstained reports whether no object was chosen.
func (d Decision) Abstained() bool {
	return d.ObjectID == ""
}

func (d Decision) String() string {
	if d.Abstained() {
		return AbstainToken
	}
	return d.ObjectID
}

// Shape selects which interpretation Normalize applies.
type Shape string

const (
	ShapeExtraction Shape = "extraction"
	ShapeIdentifier Shape = "identifier"
)

// Result holds the outcome of Normalize; only the field matching Shape is set.
type Result struct {
	Shape    Shape
	Guess    Guess
	Decision Decision
}

// Normalize dispatches raw to the interpretation named by shape. Unknown
// shapes are treated as identifiers, which abstain on anything ambiguous.
func Normalize(raw string, shape Shape) Result {
	if shape == ShapeExtraction {
		return Result{Shape: shape, Guess: Extraction(raw)}
	}
	return Result{Shape: ShapeIdentifier, Decision: Identifier(raw)}
}
