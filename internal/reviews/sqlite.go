package reviews

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"paradiso/internal/normalize"
	"paradiso/internal/sqlstore"
)

var reviewColumns = []string{
	"id", "text", "summary", "state", "tags", "augmentation", "created_at", "updated_at",
}

// SQLiteStore keeps reviews in the local database. Pages are keyed on review
// ID, so writing an outcome never shifts the rows of a later page.
type SQLiteStore struct {
	db   *sqlstore.DB
	opts Options
	now  func() time.Time
}

// NewSQLiteStore wraps an open database.
func NewSQLiteStore(db *sqlstore.DB, opts Options) *SQLiteStore {
	return &SQLiteStore{db: db, opts: opts, now: time.Now}
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) selection() sq.Sqlizer {
	notAugmented := sq.NotLike{"tags": `%"` + TagAugmented + `"%`}
	unprocessed := sq.Eq{"state": string(StateUnprocessed)}
	if s.opts.RevisitMedium {
		return sq.And{notAugmented, sq.Or{unprocessed, sq.Eq{"confidence": string(normalize.ConfidenceMedium)}}}
	}
	return sq.And{notAugmented, unprocessed}
}

// FindUnprocessed returns the first page of selectable reviews.
func (s *SQLiteStore) FindUnprocessed(ctx context.Context, pageSize int) (Page, error) {
	return s.page(ctx, pageSize, 0, "")
}

// AdvancePage returns the page after prev.
func (s *SQLiteStore) AdvancePage(ctx context.Context, prev Page) (Page, error) {
	return s.page(ctx, prev.Size, prev.Offset+len(prev.Reviews), prev.cursor)
}

func (s *SQLiteStore) page(ctx context.Context, size, offset int, cursor string) (Page, error) {
	if size <= 0 {
		return Page{}, fmt.Errorf("page size must be positive")
	}
	where := sq.And{s.selection()}
	if cursor != "" {
		where = append(where, sq.Gt{"id": cursor})
	}
	query, args, err := sq.Select(reviewColumns...).
		From("reviews").
		Where(where).
		OrderBy("id").
		Limit(uint64(size)).
		ToSql()
	if err != nil {
		return Page{}, fmt.Errorf("build page query: %w", err)
	}
	list, err := s.query(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("fetch review page: %w", err)
	}
	page := Page{Reviews: list, Size: size, Offset: offset, cursor: cursor}
	if len(list) > 0 {
		page.cursor = list[len(list)-1].ID
	}
	return page, nil
}

// WriteAugmentation stores aug on review id, marks it processed and merges
// the outcome tags into its existing tags.
func (s *SQLiteStore) WriteAugmentation(ctx context.Context, id string, aug Augmentation, tag string) error {
	payload, err := aug.Canonical()
	if err != nil {
		return err
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		var rawTags string
		err := tx.QueryRowContext(ctx, "SELECT tags FROM reviews WHERE id = ?", id).Scan(&rawTags)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("read review tags: %w", err)
		}
		tags, err := decodeTags(rawTags)
		if err != nil {
			return err
		}
		encodedTags, err := json.Marshal(MergeTags(stripConfidenceTags(tags), aug.Tags(tag)...))
		if err != nil {
			return fmt.Errorf("encode review tags: %w", err)
		}
		query, args, err := sq.Update("reviews").
			SetMap(map[string]any{
				"state":        string(StateProcessed),
				"tags":         string(encodedTags),
				"augmentation": string(payload),
				"confidence":   string(aug.Confidence),
				"movie_id":     sqlstore.NullableString(aug.MovieID),
				"processed_at": aug.ProcessedAt,
				"updated_at":   sqlstore.FormatTime(s.now()),
			}).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build augmentation update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write augmentation: %w", err)
		}
		return nil
	})
}

// Get returns one review.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Review, error) {
	query, args, err := sq.Select(reviewColumns...).From("reviews").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	list, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &list[0], nil
}

// List returns reviews matching filter in ID order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Review, error) {
	builder := sq.Select(reviewColumns...).From("reviews").OrderBy("id")
	if filter.State != "" {
		builder = builder.Where(sq.Eq{"state": string(filter.State)})
	}
	if filter.Confidence != "" {
		builder = builder.Where(sq.Eq{"confidence": string(filter.Confidence)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	list, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return list, nil
}

// Stats counts reviews by outcome.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	query, args, err := sq.Select(
		"COUNT(1)",
		"COALESCE(SUM(CASE WHEN state = 'unprocessed' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN confidence = 'high' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN confidence = 'medium' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN confidence = 'low' THEN 1 ELSE 0 END), 0)",
	).From("reviews").ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("build stats query: %w", err)
	}
	var stats Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total, &stats.Unprocessed, &stats.High, &stats.Medium, &stats.Low,
	); err != nil {
		return Stats{}, fmt.Errorf("count reviews: %w", err)
	}
	return stats, nil
}

// Import inserts reviews, updating the text of existing IDs while keeping
// their outcome.
func (s *SQLiteStore) Import(ctx context.Context, list []Review) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	stamp := sqlstore.FormatTime(s.now())
	imported := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		imported = 0
		for _, review := range list {
			if review.ID == "" {
				continue
			}
			tags := review.Tags
			if tags == nil {
				tags = []string{}
			}
			encodedTags, err := json.Marshal(tags)
			if err != nil {
				return fmt.Errorf("encode tags for %s: %w", review.ID, err)
			}
			query, args, err := sq.Insert("reviews").
				Columns("id", "text", "summary", "state", "tags", "created_at", "updated_at").
				Values(review.ID, review.Text, sqlstore.NullableString(review.Summary),
					string(StateUnprocessed), string(encodedTags), stamp, stamp).
				Suffix("ON CONFLICT(id) DO UPDATE SET text = excluded.text, summary = excluded.summary, updated_at = excluded.updated_at").
				ToSql()
			if err != nil {
				return fmt.Errorf("build import statement: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("import review %s: %w", review.ID, err)
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

// Reset clears the outcome of review id, or of every review when id is empty.
func (s *SQLiteStore) Reset(ctx context.Context, id string) error {
	var targets []Review
	if id == "" {
		all, err := s.List(ctx, Filter{})
		if err != nil {
			return err
		}
		targets = all
	} else {
		review, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		targets = []Review{*review}
	}
	stamp := sqlstore.FormatTime(s.now())
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, review := range targets {
			encodedTags, err := json.Marshal(StripEngineTags(review.Tags))
			if err != nil {
				return fmt.Errorf("encode tags for %s: %w", review.ID, err)
			}
			query, args, err := sq.Update("reviews").
				Set("state", string(StateUnprocessed)).
				Set("tags", string(encodedTags)).
				Set("augmentation", nil).
				Set("confidence", nil).
				Set("movie_id", nil).
				Set("processed_at", nil).
				Set("updated_at", stamp).
				Where(sq.Eq{"id": review.ID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build reset statement: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("reset review %s: %w", review.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, review)
	}
	return list, rows.Err()
}

func scanReview(rows *sql.Rows) (Review, error) {
	var (
		review       Review
		summary      sql.NullString
		state        string
		rawTags      string
		augmentation sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := rows.Scan(&review.ID, &review.Text, &summary, &state, &rawTags, &augmentation, &createdAt, &updatedAt); err != nil {
		return Review{}, fmt.Errorf("scan review: %w", err)
	}
	review.Summary = summary.String
	review.State = State(state)
	tags, err := decodeTags(rawTags)
	if err != nil {
		return Review{}, err
	}
	review.Tags = tags
	if augmentation.Valid && augmentation.String != "" {
		aug, err := ParseAugmentation([]byte(augmentation.String))
		if err != nil {
			return Review{}, fmt.Errorf("review %s: %w", review.ID, err)
		}
		review.Augmentation = aug
	}
	if ts, err := sqlstore.ParseTime(createdAt); err == nil {
		review.CreatedAt = ts
	}
	if ts, err := sqlstore.ParseTime(updatedAt); err == nil {
		review.UpdatedAt = ts
	}
	return review, nil
}

func decodeTags(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode review tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
