package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paradiso/internal/config"
	"paradiso/internal/normalize"
	algoliasvc "paradiso/internal/services/algolia"
	"paradiso/internal/sqlstore"
)

// Page is one batch of reviews selected for reconciliation. The store owns
// the cursor; callers hand the page back to AdvancePage to fetch the next.
type Page struct {
	Reviews []Review
	Size    int
	Offset  int
	cursor  string
	written int
}

// Short reports whether the page returned fewer reviews than requested,
// which means the selection is exhausted.
func (p Page) Short() bool {
	return len(p.Reviews) < p.Size
}

// Store is what the reconciliation loop needs from a review store.
type Store interface {
	// FindUnprocessed returns the first page of reviews that are neither
	// augmented nor terminally processed.
	FindUnprocessed(ctx context.Context, pageSize int) (Page, error)
	// AdvancePage returns the page after prev under the same selection.
	AdvancePage(ctx context.Context, prev Page) (Page, error)
	// WriteAugmentation records the outcome for one review, adding tag when
	// non-empty.
	WriteAugmentation(ctx context.Context, id string, aug Augmentation, tag string) error
}

// Filter narrows List.
type Filter struct {
	State      State
	Confidence normalize.Confidence
	Limit      int
}

// Stats summarizes the stored outcome counts.
type Stats struct {
	Total       int
	Unprocessed int
	High        int
	Medium      int
	Low         int
}

// Repository is a Store with the administrative operations the CLI uses.
type Repository interface {
	Store
	Get(ctx context.Context, id string) (*Review, error)
	List(ctx context.Context, filter Filter) ([]Review, error)
	Stats(ctx context.Context) (Stats, error)
	Import(ctx context.Context, reviews []Review) (int, error)
	Reset(ctx context.Context, id string) error
	Close() error
}

// Options tunes selection.
type Options struct {
	// RevisitMedium re-selects reviews whose last outcome was medium.
	RevisitMedium bool
}

// ErrNotFound is returned for an unknown review ID.
var ErrNotFound = errors.New("review not found")

// Open builds the review store named by cfg.Store.Reviews.
func Open(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Reviews)) {
	case config.StoreAlgolia:
		client, err := algoliasvc.NewClient(algoliasvc.Config{AppID: cfg.Algolia.AppID, APIKey: cfg.Algolia.APIKey})
		if err != nil {
			return nil, err
		}
		return NewAlgoliaStore(client.InitIndex(cfg.Algolia.ReviewsIndex), opts, logger), nil
	case config.StoreSQLite, "":
		db, err := sqlstore.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db, opts), nil
	default:
		return nil, fmt.Errorf("unsupported review store %q", cfg.Store.Reviews)
	}
}
