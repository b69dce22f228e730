package reconcile

import (
	"context"
	"strings"

	"paradiso/internal/catalog"
)

// CandidateSearch retrieves catalog candidates for a guess query.
type CandidateSearch struct {
	store catalog.Store
}

// NewCandidateSearch builds a search stage over store.
func NewCandidateSearch(store catalog.Store) *CandidateSearch {
	return &CandidateSearch{store: store}
}

// Search returns up to maxHits candidates (catalog.DefaultMaxHits when
// maxHits <= 0). A blank query returns an empty slice without touching the
// store.
func (s *CandidateSearch) Search(ctx context.Context, query string, maxHits int) ([]catalog.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []catalog.Candidate{}, nil
	}
	if maxHits <= 0 {
		maxHits = catalog.DefaultMaxHits
	}
	candidates, err := s.store.Search(ctx, query, maxHits, catalog.CandidateAttributes)
	if err != nil {
		return nil, err
	}
	if len(candidates) > maxHits {
		candidates = candidates[:maxHits]
	}
	return candidates, nil
}
