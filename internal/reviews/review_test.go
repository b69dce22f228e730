package reviews

import (
	"slices"
	"testing"
	"time"

	"paradiso/internal/normalize"
)

func intPtr(v int) *int { return &v }

func sampleGuess() normalize.Guess {
	return normalize.Guess{
		Title:      "The Matrix",
		Director:   "Lana Wachowski",
		Actors:     []string{"Keanu Reeves"},
		Year:       intPtr(1999),
		Query:      "The Matrix 1999",
		Confidence: normalize.ConfidenceHigh,
	}
}

func TestAugmentationCanonicalShapes(t *testing.T) {
	now := time.Unix(1700000000, 0)

	low, err := NewLowAugmentation(now).Canonical()
	if err != nil {
		t.Fatalf("low canonical: %v", err)
	}
	if got, want := string(low), `{"confidence":"low","processed_at":1700000000}`; got != want {
		t.Fatalf("low = %s, want %s", got, want)
	}

	guess := sampleGuess()
	guess.Director = ""
	guess.Year = nil
	medium, err := NewMediumAugmentation(guess, now).Canonical()
	if err != nil {
		t.Fatalf("medium canonical: %v", err)
	}
	wantMedium := `{"actors":["Keanu Reeves"],"confidence":"medium","director":null,"processed_at":1700000000,"query":"The Matrix 1999","title":"The Matrix","year":null}`
	if string(medium) != wantMedium {
		t.Fatalf("medium = %s, want %s", medium, wantMedium)
	}

	high, err := NewHighAugmentation(sampleGuess(), "m1", now).Canonical()
	if err != nil {
		t.Fatalf("high canonical: %v", err)
	}
	wantHigh := `{"actors":["Keanu Reeves"],"confidence":"high","director":"Lana Wachowski","movie_id":"m1","processed_at":1700000000,"query":"The Matrix 1999","title":"The Matrix","year":1999}`
	if string(high) != wantHigh {
		t.Fatalf("high = %s, want %s", high, wantHigh)
	}
}

func TestAugmentationCanonicalIsStable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	first, err := NewHighAugmentation(sampleGuess(), "m1", now).Canonical()
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewHighAugmentation(sampleGuess(), "m1", now).Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("canonical bytes differ: %s vs %s", first, second)
	}
}

func TestParseAugmentationRoundTrip(t *testing.T) {
	original := NewHighAugmentation(sampleGuess(), "m1", time.Unix(42, 0))
	payload, err := original.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseAugmentation(payload)
	if err != nil {
		t.Fatalf("ParseAugmentation: %v", err)
	}
	if parsed.Confidence != normalize.ConfidenceHigh || parsed.MovieID != "m1" || parsed.Title != "The Matrix" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
	if parsed.Year == nil || *parsed.Year != 1999 || parsed.ProcessedAt != 42 {
		t.Fatalf("unexpected year/processed_at: %+v", parsed)
	}

	low, err := ParseAugmentation([]byte(`{"confidence":"LOW","processed_at":7}`))
	if err != nil {
		t.Fatal(err)
	}
	if low.Confidence != normalize.ConfidenceLow || low.Title != "" || low.Year != nil {
		t.Fatalf("unexpected low parse: %+v", low)
	}
}

func TestAugmentationTags(t *testing.T) {
	now := time.Now()
	cases := []struct {
		aug  Augmentation
		tag  string
		want []string
	}{
		{NewLowAugmentation(now), "", []string{TagProcessed, TagLowConfidence}},
		{NewMediumAugmentation(sampleGuess(), now), "", []string{TagProcessed, TagMediumConfidence}},
		{NewHighAugmentation(sampleGuess(), "m1", now), TagAugmented, []string{TagProcessed, TagAugmented}},
	}
	for _, tc := range cases {
		if got := tc.aug.Tags(tc.tag); !slices.Equal(got, tc.want) {
			t.Fatalf("%s tags = %v, want %v", tc.aug.Confidence, got, tc.want)
		}
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"featured", "processed", " "}, "processed", "augmented", "featured")
	want := []string{"featured", "processed", "augmented"}
	if !slices.Equal(got, want) {
		t.Fatalf("MergeTags = %v, want %v", got, want)
	}
	if got := StripEngineTags([]string{"featured", TagAugmented, TagLowConfidence, TagProcessed}); !slices.Equal(got, []string{"featured"}) {
		t.Fatalf("StripEngineTags = %v", got)
	}
}

func TestReviewHasText(t *testing.T) {
	if (Review{Text: "  \n"}).HasText() {
		t.Fatal("blank text should not count")
	}
	if !(Review{Summary: "great film"}).HasText() {
		t.Fatal("summary alone should count")
	}
}
