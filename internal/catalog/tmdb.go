package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"paradiso/internal/catalog/tmdb"
	"paradiso/internal/config"
	"paradiso/internal/logging"
)

const tmdbLeadActors = 5

var queryYearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2}|2100)\b`)

// TMDBStore searches The Movie Database. A year in the query filters the
// first search; when that finds nothing the search repeats without it.
// Directors and lead actors come from each candidate's credits.
type TMDBStore struct {
	client tmdb.Searcher
	logger *slog.Logger
}

// NewTMDBStore builds a store from the TMDB settings.
func NewTMDBStore(cfg config.TMDB, logger *slog.Logger) (*TMDBStore, error) {
	client, err := tmdb.New(cfg.APIKey, cfg.BaseURL, cfg.Language)
	if err != nil {
		return nil, err
	}
	return NewTMDBStoreWithClient(client, logger), nil
}

// NewTMDBStoreWithClient wraps an existing searcher.
func NewTMDBStoreWithClient(client tmdb.Searcher, logger *slog.Logger) *TMDBStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TMDBStore{
		client: client,
		logger: logger.With(logging.String(logging.FieldComponent, "tmdb_catalog")),
	}
}

// Close is a no-op.
func (s *TMDBStore) Close() error {
	return nil
}

// splitQueryYear removes the first plausible year from query.
func splitQueryYear(query string) (string, int) {
	loc := queryYearPattern.FindStringIndex(query)
	if loc == nil {
		return strings.TrimSpace(query), 0
	}
	year, err := strconv.Atoi(query[loc[0]:loc[1]])
	if err != nil {
		return strings.TrimSpace(query), 0
	}
	rest := strings.Join(strings.Fields(query[:loc[0]]+" "+query[loc[1]:]), " ")
	if rest == "" {
		return strings.TrimSpace(query), 0
	}
	return rest, year
}

// Search returns up to maxHits TMDB movies for query.
func (s *TMDBStore) Search(ctx context.Context, query string, maxHits int, attributes []string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Candidate{}, nil
	}
	maxHits = normalizeMaxHits(maxHits)
	title, year := splitQueryYear(query)

	var movies []tmdb.Movie
	if year > 0 {
		resp, err := s.client.SearchMovie(ctx, title, tmdb.SearchOptions{Year: year})
		if err != nil {
			return nil, fmt.Errorf("tmdb search: %w", err)
		}
		movies = resp.Results
	}
	if len(movies) == 0 {
		resp, err := s.client.SearchMovie(ctx, title, tmdb.SearchOptions{})
		if err != nil {
			return nil, fmt.Errorf("tmdb search: %w", err)
		}
		movies = resp.Results
	}
	rankByTitle(movies, title)
	if len(movies) > maxHits {
		movies = movies[:maxHits]
	}

	needCredits := wants(attributes, AttrDirector) || wants(attributes, AttrActors)
	candidates := make([]Candidate, 0, len(movies))
	for _, movie := range movies {
		candidate := Candidate{
			ObjectID: strconv.FormatInt(movie.ID, 10),
			Title:    movie.Title,
		}
		if y := movie.Year(); y > 0 {
			candidate.Year = &y
		}
		if needCredits {
			details, err := s.client.GetMovieDetails(ctx, movie.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Debug("tmdb credits unavailable",
					logging.String("tmdb_id", candidate.ObjectID),
					logging.Error(err),
				)
			} else {
				candidate.Director = strings.Join(details.Credits.Directors(), ", ")
				candidate.Actors = details.Credits.LeadActors(tmdbLeadActors)
			}
		}
		candidates = append(candidates, project(candidate, attributes))
	}
	return candidates, nil
}

// rankByTitle moves movies whose title leads the query ahead of the rest,
// longest title first, keeping TMDB's order otherwise.
func rankByTitle(movies []tmdb.Movie, query string) {
	folded := Fold(query)
	sort.SliceStable(movies, func(i, j int) bool {
		return titleScore(movies[i], folded) > titleScore(movies[j], folded)
	})
}

func titleScore(movie tmdb.Movie, folded string) int {
	return max(titleLead(folded, Fold(movie.Title)), titleLead(folded, Fold(movie.OriginalTitle)))
}
