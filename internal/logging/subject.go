package logging

import "strings"

// FormatSubject builds the review/stage subject string used in console output.
func FormatSubject(reviewID, stage string) string {
	reviewID = strings.TrimSpace(reviewID)
	stage = strings.TrimSpace(stage)
	switch {
	case reviewID != "" && stage != "":
		return "Review " + reviewID + " (" + stage + ")"
	case reviewID != "":
		return "Review " + reviewID
	default:
		return stage
	}
}
