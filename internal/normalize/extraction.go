package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	lowConfidencePattern = regexp.MustCompile(`(?i)low[\s_-]+confidence|confidence["']?\s*[:=]\s*["']?low\b`)

	titlePattern      = fieldPattern("title")
	directorPattern   = fieldPattern("director")
	queryPattern      = fieldPattern("query")
	yearPattern       = regexp.MustCompile(`(?i)["']?year["']?\s*:\s*(\d{4})`)
	actorsListPattern = regexp.MustCompile(`(?is)["']?actors["']?\s*:\s*\[(.*?)\]`)
	actorsBarePattern = regexp.MustCompile(`(?i)["']?actors["']?\s*:\s*([^\[\]{}\n]+)`)
	quotedPattern     = regexp.MustCompile(`["']([^"']+)["']`)
	confidencePattern = regexp.MustCompile(`(?i)["']?confidence["']?\s*:\s*["']?(low|medium|high)["']?`)
	objectPattern     = regexp.MustCompile(`\{[\s\S]*?\}`)
)

func fieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)["']?` + name + `["']?\s*:\s*["']([^"']+)["']`)
}

// Extraction interprets raw extraction output.
func Extraction(raw string) Guess {
	cleaned := stripFences(raw)
	if cleaned == "" || lowConfidencePattern.MatchString(raw) {
		return LowConfidence()
	}
	fields, ok := parseObject(cleaned)
	if !ok {
		fields = extractFields(cleaned)
	}
	return buildGuess(fields)
}

func stripFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```JSON", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// parseObject tries the whole text, then the first {...} object, then that
// object with single quotes turned into double quotes. An object that is not
// a complete answer keeps its valid fields and the rest are scraped from text.
func parseObject(text string) (map[string]any, bool) {
	candidates := []string{text}
	if object := objectPattern.FindString(text); object != "" {
		candidates = append(candidates, object, strings.ReplaceAll(object, "'", `"`))
	}
	for _, candidate := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
			continue
		}
		fields := allowList(obj)
		if !objectComplete(obj) {
			for field, value := range extractFields(text) {
				if _, ok := fields[field]; !ok {
					fields[field] = value
				}
			}
		}
		return fields, true
	}
	return nil, false
}

func extractFields(text string) map[string]any {
	fields := make(map[string]any)
	if m := titlePattern.FindStringSubmatch(text); m != nil {
		fields["title"] = strings.TrimSpace(m[1])
	}
	if m := directorPattern.FindStringSubmatch(text); m != nil {
		fields["director"] = strings.TrimSpace(m[1])
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		fields["year"] = m[1]
	}
	if actors := extractActors(text); len(actors) > 0 {
		fields["actors"] = actors
	}
	if m := queryPattern.FindStringSubmatch(text); m != nil {
		fields["query"] = strings.TrimSpace(m[1])
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		fields["confidence"] = strings.ToLower(m[1])
	}
	return fields
}

func extractActors(text string) []any {
	if m := actorsListPattern.FindStringSubmatch(text); m != nil {
		var actors []any
		for _, quoted := range quotedPattern.FindAllStringSubmatch(m[1], -1) {
			if name := strings.TrimSpace(quoted[1]); name != "" {
				actors = append(actors, name)
			}
		}
		if len(actors) > 0 {
			return actors
		}
		return splitNames(m[1])
	}
	if m := actorsBarePattern.FindStringSubmatch(text); m != nil {
		return splitNames(m[1])
	}
	return nil
}

func splitNames(list string) []any {
	var names []any
	for _, part := range strings.Split(list, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func buildGuess(fields map[string]any) Guess {
	if len(fields) == 0 {
		return LowConfidence()
	}
	if _, onlyConfidence := fields["confidence"]; onlyConfidence && len(fields) == 1 {
		return LowConfidence()
	}
	if confidence, _ := fields["confidence"].(string); strings.EqualFold(strings.TrimSpace(confidence), string(ConfidenceLow)) {
		return LowConfidence()
	}
	title := stringField(fields["title"])
	if title == "" {
		return LowConfidence()
	}
	guess := Guess{
		Title:    title,
		Director: stringField(fields["director"]),
		Actors:   actorsField(fields["actors"]),
		Year:     yearField(fields["year"]),
		Query:    stringField(fields["query"]),
	}
	if guess.Query == "" {
		guess.Query = synthesizeQuery(guess)
	}
	guess.Query = truncateRunes(guess.Query, MaxQueryLength)
	return guess
}

func synthesizeQuery(g Guess) string {
	parts := []string{g.Title}
	if g.Director != "" {
		parts = append(parts, g.Director)
	}
	if len(g.Actors) > 0 {
		parts = append(parts, g.Actors[0])
	}
	return strings.Join(parts, " ")
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func stringField(value any) string {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

func actorsField(value any) []string {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case string:
		raw = splitNames(v)
	}
	actors := make([]string, 0, len(raw))
	for _, item := range raw {
		if name := stringField(item); name != "" {
			actors = append(actors, name)
		}
	}
	return actors
}

func yearField(value any) *int {
	var year int
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		year = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		year = parsed
	default:
		return nil
	}
	if year < MinYear || year > MaxYear {
		return nil
	}
	return &year
}
