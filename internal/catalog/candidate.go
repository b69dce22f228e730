package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"paradiso/internal/config"
	algoliasvc "paradiso/internal/services/algolia"
	"paradiso/internal/sqlstore"
)

// DefaultMaxHits is the candidate count used when a caller passes <= 0.
const DefaultMaxHits = 10

// Attribute names understood by every store.
const (
	AttrObjectID = "objectID"
	AttrTitle    = "title"
	AttrDirector = "director"
	AttrActors   = "actors"
	AttrYear     = "year"
)

// CandidateAttributes is the projection used for confirmation.
var CandidateAttributes = []string{AttrObjectID, AttrTitle, AttrDirector, AttrActors, AttrYear}

// Candidate is one catalog entry offered for confirmation.
type Candidate struct {
	ObjectID string   `json:"objectID"`
	Title    string   `json:"title,omitempty"`
	Director string   `json:"director,omitempty"`
	Actors   []string `json:"actors,omitempty"`
	Year     *int     `json:"year,omitempty"`
}

// Store searches the catalog.
type Store interface {
	Search(ctx context.Context, query string, maxHits int, attributes []string) ([]Candidate, error)
}

// Importer loads candidates into a writable catalog.
type Importer interface {
	Import(ctx context.Context, movies []Candidate) (int, error)
}

// Catalog is a Store that owns resources.
type Catalog interface {
	Store
	Close() error
}

// Open builds the catalog store named by cfg.Store.Catalog.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Catalog, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Catalog)) {
	case config.StoreAlgolia:
		client, err := algoliasvc.NewClient(algoliasvc.Config{AppID: cfg.Algolia.AppID, APIKey: cfg.Algolia.APIKey})
		if err != nil {
			return nil, err
		}
		return NewAlgoliaStore(client.InitIndex(cfg.Algolia.MoviesIndex)), nil
	case config.StoreTMDB:
		return NewTMDBStore(cfg.TMDB, logger)
	case config.StoreSQLite, "":
		db, err := sqlstore.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported catalog store %q", cfg.Store.Catalog)
	}
}

func normalizeMaxHits(maxHits int) int {
	if maxHits <= 0 {
		return DefaultMaxHits
	}
	return maxHits
}

// project keeps objectID and the requested attributes. A nil attribute list
// keeps everything.
func project(candidate Candidate, attributes []string) Candidate {
	if attributes == nil {
		return candidate
	}
	projected := Candidate{ObjectID: candidate.ObjectID}
	for _, attr := range attributes {
		switch attr {
		case AttrTitle:
			projected.Title = candidate.Title
		case AttrDirector:
			projected.Director = candidate.Director
		case AttrActors:
			projected.Actors = candidate.Actors
		case AttrYear:
			projected.Year = candidate.Year
		case "*":
			return candidate
		}
	}
	return projected
}

func wants(attributes []string, attr string) bool {
	return attributes == nil || slices.Contains(attributes, attr) || slices.Contains(attributes, "*")
}

// Fold lowercases s, strips diacritics and collapses whitespace so titles
// compare equal across accents and case.
func Fold(s string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

// titleLead returns the length of a folded title when the folded query is
// that title or starts with it followed by a space, else zero.
func titleLead(query, title string) int {
	if title == "" {
		return 0
	}
	if query == title || strings.HasPrefix(query, title+" ") {
		return len([]rune(title))
	}
	return 0
}

// Tokens splits the folded query into letter and digit runs.
func Tokens(query string) []string {
	return strings.FieldsFunc(Fold(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// candidateFromHit converts a loosely typed search hit. Year may arrive as a
// number or string and actors as a list or a comma-separated string.
func candidateFromHit(hit map[string]any) Candidate {
	candidate := Candidate{
		ObjectID: stringValue(hit["objectID"]),
		Title:    stringValue(hit["title"]),
		Director: stringValue(hit["director"]),
	}
	switch actors := hit["actors"].(type) {
	case []any:
		for _, actor := range actors {
			if name := strings.TrimSpace(stringValue(actor)); name != "" {
				candidate.Actors = append(candidate.Actors, name)
			}
		}
	case []string:
		candidate.Actors = slices.Clone(actors)
	case string:
		for _, name := range strings.Split(actors, ",") {
			if name = strings.TrimSpace(name); name != "" {
				candidate.Actors = append(candidate.Actors, name)
			}
		}
	}
	switch year := hit["year"].(type) {
	case float64:
		y := int(year)
		candidate.Year = &y
	case int:
		candidate.Year = &year
	case string:
		if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
			candidate.Year = &y
		}
	}
	return candidate
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
