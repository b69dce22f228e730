package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"

	algoliasvc "paradiso/internal/services/algolia"
)

// AlgoliaStore queries the hosted movies index.
type AlgoliaStore struct {
	index algoliasvc.Index
}

// NewAlgoliaStore wraps a movies index.
func NewAlgoliaStore(index algoliasvc.Index) *AlgoliaStore {
	return &AlgoliaStore{index: index}
}

// Close is a no-op; the search client holds no resources.
func (s *AlgoliaStore) Close() error {
	return nil
}

// Search returns the index's top hits for query.
func (s *AlgoliaStore) Search(ctx context.Context, query string, maxHits int, attributes []string) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return []Candidate{}, nil
	}
	opts := []interface{}{opt.HitsPerPage(normalizeMaxHits(maxHits)), ctx}
	if attributes != nil {
		opts = append(opts, opt.AttributesToRetrieve(attributes...))
	}
	res, err := s.index.Search(query, opts...)
	if err != nil {
		return nil, fmt.Errorf("search movies index: %w", algoliasvc.Classify(err))
	}
	candidates := make([]Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		candidate := candidateFromHit(hit)
		if candidate.ObjectID == "" {
			continue
		}
		candidates = append(candidates, project(candidate, attributes))
	}
	return candidates, nil
}

// Import saves movies as index records.
func (s *AlgoliaStore) Import(ctx context.Context, movies []Candidate) (int, error) {
	records := make([]Candidate, 0, len(movies))
	for _, movie := range movies {
		if movie.ObjectID != "" {
			records = append(records, movie)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	if _, err := s.index.SaveObjects(records, ctx); err != nil {
		return 0, fmt.Errorf("import movies: %w", algoliasvc.Classify(err))
	}
	return len(records), nil
}
