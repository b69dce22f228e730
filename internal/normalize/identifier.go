package normalize

import (
	"regexp"
	"strings"
)

var (
	notSurePattern = regexp.MustCompile(`(?i)not[\s_]sure`)
	wholeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{5,}$`)
	labeledPattern = regexp.MustCompile(`(?i)\b(?:object[\s_-]*id|id)\b\s*[:=#]?\s*([A-Za-z0-9_-]{5,})`)
	idTokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]{5,}`)

	// Prose fragments that must never be read as an identifier.
	denylist = []string{"the", "and", "but", "not", "sure", "match", "found", "movie", "review", "object"}

	identifierStripper = strings.NewReplacer("```", "", `"`, "", "'", "", "`", "")
)

// Identifier interprets raw confirmation output as an object ID or
// abstention. Abstention wins over any identifier-shaped text.
func Identifier(raw string) Decision {
	cleaned := strings.TrimSpace(identifierStripper.Replace(raw))
	if cleaned == "" || notSurePattern.MatchString(cleaned) {
		return Abstain()
	}
	if wholeIDPattern.MatchString(cleaned) {
		return Decision{ObjectID: cleaned}
	}
	if m := labeledPattern.FindStringSubmatch(cleaned); m != nil {
		return Decision{ObjectID: m[1]}
	}
	// Unlabeled tokens can be prose; callers still check the ID against
	// the candidates they offered.
	for _, token := range idTokenPattern.FindAllString(cleaned, -1) {
		if !denied(token) {
			return Decision{ObjectID: token}
		}
	}
	return Abstain()
}

func denied(token string) bool {
	lower := strings.ToLower(token)
	for _, word := range denylist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
