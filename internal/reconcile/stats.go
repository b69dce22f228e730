package reconcile

import "time"

// Outcome is the terminal state of one review in a pass.
type Outcome string

const (
	OutcomeMatched       Outcome = "matched"
	OutcomeNoMatch       Outcome = "no-match"
	OutcomeLowConfidence Outcome = "low-confidence"
	OutcomeSkippedError  Outcome = "skipped-error"
)

// Status is how a pass ended.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusError       Status = "error"
)

// BatchStats describes one page of reviews.
type BatchStats struct {
	Reviews  int           `json:"reviews"`
	Duration time.Duration `json:"duration"`
}

// Throughput returns reviews per second for the batch.
func (b BatchStats) Throughput() float64 {
	if b.Duration <= 0 {
		return 0
	}
	return float64(b.Reviews) / b.Duration.Seconds()
}

// Stats aggregates a pass. Attempted counts every review that reached a
// terminal outcome, skipped-error included; blank reviews are not counted.
type Stats struct {
	Attempted int           `json:"attempted"`
	Matched   int           `json:"matched"`
	Medium    int           `json:"medium"`
	Low       int           `json:"low"`
	Skipped   int           `json:"skipped_error"`
	Blank     int           `json:"blank"`
	Elapsed   time.Duration `json:"elapsed"`
	Batches   []BatchStats  `json:"batches"`
}

func (s *Stats) record(outcome Outcome) {
	s.Attempted++
	switch outcome {
	case OutcomeMatched:
		s.Matched++
	case OutcomeNoMatch:
		s.Medium++
	case OutcomeLowConfidence:
		s.Low++
	case OutcomeSkippedError:
		s.Skipped++
	}
}

// MatchRate returns matched / attempted as a fraction.
func (s Stats) MatchRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Attempted)
}

// AverageSeconds returns elapsed seconds per attempted review.
func (s Stats) AverageSeconds() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.Attempted)
}

// Throughput returns reviews per second over the whole pass.
func (s Stats) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Attempted) / s.Elapsed.Seconds()
}

// Result is the outcome of a pass. Stats are populated for every status.
type Result struct {
	Status Status
	Stats  Stats
	Err    error
}
