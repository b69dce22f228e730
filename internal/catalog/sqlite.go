package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"paradiso/internal/sqlstore"
)

// SQLiteStore ranks the local movies table with FTS5. Movies whose folded
// title leads the query sort first, longest title first, then bm25 relevance.
type SQLiteStore struct {
	db *sqlstore.DB
}

// NewSQLiteStore wraps an open database.
func NewSQLiteStore(db *sqlstore.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// titlePrefixRank scores a movie by its title length when the folded query
// is the title or starts with the title followed by a space, else zero.
const titlePrefixRank = "CASE WHEN m.title_folded = ? OR substr(?, 1, length(m.title_folded) + 1) = m.title_folded || ' ' " +
	"THEN length(m.title_folded) ELSE 0 END DESC"

// matchExpression quotes every token and ORs them so any shared word is a
// hit and FTS5 syntax in the query is inert.
func matchExpression(query string) string {
	tokens := Tokens(query)
	quoted := make([]string, 0, len(tokens))
	for _, token := range tokens {
		quoted = append(quoted, `"`+token+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Search returns up to maxHits movies ranked against query.
func (s *SQLiteStore) Search(ctx context.Context, query string, maxHits int, attributes []string) ([]Candidate, error) {
	match := matchExpression(query)
	if match == "" {
		return []Candidate{}, nil
	}
	folded := Fold(query)
	stmt, args, err := sq.Select("m.object_id", "m.title", "m.director", "m.actors", "m.year").
		From("movies_fts").
		Join("movies m ON m.object_id = movies_fts.object_id").
		Where("movies_fts MATCH ?", match).
		OrderByClause(titlePrefixRank, folded, folded).
		OrderBy("bm25(movies_fts)", "m.object_id").
		Limit(uint64(normalizeMaxHits(maxHits))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	candidates := []Candidate{}
	for rows.Next() {
		var (
			candidate Candidate
			director  sql.NullString
			actors    string
			year      sql.NullInt64
		)
		if err := rows.Scan(&candidate.ObjectID, &candidate.Title, &director, &actors, &year); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		candidate.Director = director.String
		if actors != "" {
			if err := json.Unmarshal([]byte(actors), &candidate.Actors); err != nil {
				return nil, fmt.Errorf("decode actors for %s: %w", candidate.ObjectID, err)
			}
		}
		if year.Valid {
			y := int(year.Int64)
			candidate.Year = &y
		}
		candidates = append(candidates, project(candidate, attributes))
	}
	return candidates, rows.Err()
}

// Import upserts movies into the table and its full-text index.
func (s *SQLiteStore) Import(ctx context.Context, movies []Candidate) (int, error) {
	imported := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		imported = 0
		for _, movie := range movies {
			if movie.ObjectID == "" || strings.TrimSpace(movie.Title) == "" {
				continue
			}
			actors := movie.Actors
			if actors == nil {
				actors = []string{}
			}
			encodedActors, err := json.Marshal(actors)
			if err != nil {
				return fmt.Errorf("encode actors for %s: %w", movie.ObjectID, err)
			}
			upsert, args, err := sq.Insert("movies").
				Columns("object_id", "title", "title_folded", "director", "actors", "year").
				Values(movie.ObjectID, movie.Title, Fold(movie.Title),
					sqlstore.NullableString(movie.Director), string(encodedActors), sqlstore.NullableInt(movie.Year)).
				Suffix("ON CONFLICT(object_id) DO UPDATE SET title = excluded.title, title_folded = excluded.title_folded, " +
					"director = excluded.director, actors = excluded.actors, year = excluded.year").
				ToSql()
			if err != nil {
				return fmt.Errorf("build movie upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
				return fmt.Errorf("import movie %s: %w", movie.ObjectID, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM movies_fts WHERE object_id = ?", movie.ObjectID); err != nil {
				return fmt.Errorf("clear index for %s: %w", movie.ObjectID, err)
			}
			index, args, err := sq.Insert("movies_fts").
				Columns("object_id", "title", "director", "actors").
				Values(movie.ObjectID, movie.Title, movie.Director, strings.Join(actors, " ")).
				ToSql()
			if err != nil {
				return fmt.Errorf("build index insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, index, args...); err != nil {
				return fmt.Errorf("index movie %s: %w", movie.ObjectID, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
