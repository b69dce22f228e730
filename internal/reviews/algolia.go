package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/errs"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"

	"paradiso/internal/logging"
	"paradiso/internal/normalize"
	algoliasvc "paradiso/internal/services/algolia"
)

const (
	algoliaListPageSize = 1000

	filterDefault = "NOT _tags:" + TagAugmented + " AND NOT _tags:" + TagProcessed
	filterRevisit = "NOT _tags:" + TagAugmented + " AND NOT _tags:" + TagLowConfidence
)

type algoliaRecord struct {
	ObjectID  string          `json:"objectID"`
	Text      string          `json:"review_text"`
	Summary   string          `json:"summary,omitempty"`
	Tags      []string        `json:"_tags"`
	Augmented json.RawMessage `json:"augmented,omitempty"`
}

// AlgoliaStore keeps reviews in a hosted Algolia index. Selection is a tag
// filter, so a written review leaves the result set; the next page offset
// is reduced by the number of reviews written since the last fetch.
type AlgoliaStore struct {
	index  algoliasvc.Index
	opts   Options
	logger *slog.Logger
	wait   func(search.UpdateTaskRes) error

	mu      sync.Mutex
	tags    map[string][]string
	written int
}

// NewAlgoliaStore wraps a reviews index. Writes block until Algolia has
// indexed them so the following page query sees the new tags.
func NewAlgoliaStore(index algoliasvc.Index, opts Options, logger *slog.Logger) *AlgoliaStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AlgoliaStore{
		index:  index,
		opts:   opts,
		logger: logger.With(logging.String(logging.FieldComponent, "algolia_reviews")),
		wait:   func(res search.UpdateTaskRes) error { return res.Wait() },
		tags:   make(map[string][]string),
	}
}

// Close is a no-op; the search client holds no resources.
func (s *AlgoliaStore) Close() error {
	return nil
}

func (s *AlgoliaStore) filter() string {
	if s.opts.RevisitMedium {
		return filterRevisit
	}
	return filterDefault
}

// selected mirrors filter for a tag set.
func (s *AlgoliaStore) selected(tags []string) bool {
	if slices.Contains(tags, TagAugmented) {
		return false
	}
	if s.opts.RevisitMedium {
		return !slices.Contains(tags, TagLowConfidence)
	}
	return !slices.Contains(tags, TagProcessed)
}

// FindUnprocessed returns the first page of selectable reviews.
func (s *AlgoliaStore) FindUnprocessed(ctx context.Context, pageSize int) (Page, error) {
	return s.page(ctx, pageSize, 0)
}

// AdvancePage returns the page after prev.
func (s *AlgoliaStore) AdvancePage(ctx context.Context, prev Page) (Page, error) {
	s.mu.Lock()
	written := s.written
	s.mu.Unlock()
	offset := prev.Offset + len(prev.Reviews) - written
	if offset < 0 {
		offset = 0
	}
	return s.page(ctx, prev.Size, offset)
}

func (s *AlgoliaStore) page(ctx context.Context, size, offset int) (Page, error) {
	if size <= 0 {
		return Page{}, fmt.Errorf("page size must be positive")
	}
	res, err := s.index.Search("",
		opt.Filters(s.filter()),
		opt.Offset(offset),
		opt.Length(size),
		ctx,
	)
	if err != nil {
		return Page{}, fmt.Errorf("fetch review page: %w", algoliasvc.Classify(err))
	}
	list, err := s.decodeHits(res)
	if err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	s.written = 0
	clear(s.tags)
	for _, review := range list {
		s.tags[review.ID] = review.Tags
	}
	s.mu.Unlock()

	return Page{Reviews: list, Size: size, Offset: offset}, nil
}

// WriteAugmentation stores aug on review id and merges the outcome tags.
func (s *AlgoliaStore) WriteAugmentation(ctx context.Context, id string, aug Augmentation, tag string) error {
	existing, err := s.existingTags(ctx, id)
	if err != nil {
		return err
	}
	tags := MergeTags(stripConfidenceTags(existing), aug.Tags(tag)...)
	update := map[string]any{
		"objectID":  id,
		"augmented": aug.Fields(),
		"_tags":     tags,
	}
	res, err := s.index.PartialUpdateObject(update, opt.CreateIfNotExists(false), ctx)
	if err != nil {
		return fmt.Errorf("write augmentation for %s: %w", id, algoliasvc.Classify(err))
	}
	if err := s.wait(res); err != nil {
		return fmt.Errorf("wait for augmentation of %s: %w", id, algoliasvc.Classify(err))
	}

	s.mu.Lock()
	if _, onPage := s.tags[id]; onPage {
		s.tags[id] = tags
		if !s.selected(tags) {
			s.written++
		}
	}
	s.mu.Unlock()

	s.logger.Debug("augmentation written",
		logging.String(logging.FieldReviewID, id),
		logging.String("confidence", string(aug.Confidence)),
		logging.Any("tags", tags),
	)
	return nil
}

func (s *AlgoliaStore) existingTags(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	tags, ok := s.tags[id]
	s.mu.Unlock()
	if ok {
		return tags, nil
	}
	review, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return review.Tags, nil
}

// Get returns one review.
func (s *AlgoliaStore) Get(ctx context.Context, id string) (*Review, error) {
	var record algoliaRecord
	if err := s.index.GetObject(id, &record, ctx); err != nil {
		var netErr *errs.NetError
		if errors.As(err, &netErr) && netErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get review %s: %w", id, algoliasvc.Classify(err))
	}
	review, err := record.review()
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// List returns reviews matching filter.
func (s *AlgoliaStore) List(ctx context.Context, filter Filter) ([]Review, error) {
	var list []Review
	for pageNum := 0; ; pageNum++ {
		res, err := s.index.Search("",
			opt.Filters(listFilter(filter)),
			opt.Page(pageNum),
			opt.HitsPerPage(algoliaListPageSize),
			ctx,
		)
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", algoliasvc.Classify(err))
		}
		batch, err := s.decodeHits(res)
		if err != nil {
			return nil, err
		}
		list = append(list, batch...)
		if filter.Limit > 0 && len(list) >= filter.Limit {
			return list[:filter.Limit], nil
		}
		if len(batch) < algoliaListPageSize || pageNum+1 >= res.NbPages {
			return list, nil
		}
	}
}

func listFilter(filter Filter) string {
	var clauses []string
	switch filter.State {
	case StateProcessed:
		clauses = append(clauses, "_tags:"+TagProcessed)
	case StateUnprocessed:
		clauses = append(clauses, "NOT _tags:"+TagProcessed)
	}
	if tag := confidenceTag(filter.Confidence); tag != "" {
		clauses = append(clauses, "_tags:"+tag)
	}
	return strings.Join(clauses, " AND ")
}

func confidenceTag(confidence normalize.Confidence) string {
	switch confidence {
	case normalize.ConfidenceHigh:
		return TagAugmented
	case normalize.ConfidenceMedium:
		return TagMediumConfidence
	case normalize.ConfidenceLow:
		return TagLowConfidence
	default:
		return ""
	}
}

// Stats counts reviews by outcome using hit counts.
func (s *AlgoliaStore) Stats(ctx context.Context) (Stats, error) {
	count := func(filters string) (int, error) {
		res, err := s.index.Search("", opt.Filters(filters), opt.HitsPerPage(0), ctx)
		if err != nil {
			return 0, fmt.Errorf("count reviews: %w", algoliasvc.Classify(err))
		}
		return res.NbHits, nil
	}
	var (
		stats Stats
		err   error
	)
	targets := []struct {
		dest   *int
		filter string
	}{
		{&stats.Total, ""},
		{&stats.Unprocessed, "NOT _tags:" + TagProcessed},
		{&stats.High, "_tags:" + TagAugmented},
		{&stats.Medium, "_tags:" + TagMediumConfidence},
		{&stats.Low, "_tags:" + TagLowConfidence},
	}
	for _, target := range targets {
		if *target.dest, err = count(target.filter); err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

// Import saves reviews as new records, replacing any with the same ID.
func (s *AlgoliaStore) Import(ctx context.Context, list []Review) (int, error) {
	records := make([]algoliaRecord, 0, len(list))
	for _, review := range list {
		if review.ID == "" {
			continue
		}
		tags := review.Tags
		if tags == nil {
			tags = []string{}
		}
		records = append(records, algoliaRecord{
			ObjectID: review.ID,
			Text:     review.Text,
			Summary:  review.Summary,
			Tags:     tags,
		})
	}
	if len(records) == 0 {
		return 0, nil
	}
	if _, err := s.index.SaveObjects(records, ctx); err != nil {
		return 0, fmt.Errorf("import reviews: %w", algoliasvc.Classify(err))
	}
	return len(records), nil
}

// Reset clears the outcome of review id, or of every processed review when
// id is empty.
func (s *AlgoliaStore) Reset(ctx context.Context, id string) error {
	var targets []Review
	if id == "" {
		processed, err := s.List(ctx, Filter{State: StateProcessed})
		if err != nil {
			return err
		}
		targets = processed
	} else {
		review, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		targets = []Review{*review}
	}
	for _, review := range targets {
		update := map[string]any{
			"objectID":  review.ID,
			"augmented": nil,
			"_tags":     StripEngineTags(review.Tags),
		}
		if _, err := s.index.PartialUpdateObject(update, opt.CreateIfNotExists(false), ctx); err != nil {
			return fmt.Errorf("reset review %s: %w", review.ID, algoliasvc.Classify(err))
		}
	}
	return nil
}

func (s *AlgoliaStore) decodeHits(res search.QueryRes) ([]Review, error) {
	var records []algoliaRecord
	if err := res.UnmarshalHits(&records); err != nil {
		return nil, fmt.Errorf("decode review hits: %w", err)
	}
	list := make([]Review, 0, len(records))
	for _, record := range records {
		review, err := record.review()
		if err != nil {
			s.logger.Warn("review record has unreadable augmentation",
				logging.String(logging.FieldReviewID, record.ObjectID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "review_decode_failed"),
				logging.String(logging.FieldErrorHint, "reset the review to clear the stored augmentation"),
			)
			review.Augmentation = nil
		}
		list = append(list, review)
	}
	return list, nil
}

func (r algoliaRecord) review() (Review, error) {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	review := Review{
		ID:      r.ObjectID,
		Text:    r.Text,
		Summary: r.Summary,
		State:   StateUnprocessed,
		Tags:    tags,
	}
	if slices.Contains(tags, TagProcessed) || slices.Contains(tags, TagAugmented) {
		review.State = StateProcessed
	}
	raw := strings.TrimSpace(string(r.Augmented))
	if raw == "" || raw == "null" {
		return review, nil
	}
	aug, err := ParseAugmentation(r.Augmented)
	if err != nil {
		return review, err
	}
	review.Augmentation = aug
	return review, nil
}
