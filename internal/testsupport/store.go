package testsupport

import (
	"context"
	"testing"

	"paradiso/internal/catalog"
	"paradiso/internal/config"
	"paradiso/internal/reviews"
	"paradiso/internal/sqlstore"
)

// MustOpenDB opens the config's SQLite database and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *sqlstore.DB {
	t.Helper()

	db, err := sqlstore.Open(context.Background(), cfg.Store.SQLitePath)
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenReviewStore opens a SQLite review store seeded with list.
func MustOpenReviewStore(t testing.TB, cfg *config.Config, opts reviews.Options, list ...reviews.Review) *reviews.SQLiteStore {
	t.Helper()

	store := reviews.NewSQLiteStore(MustOpenDB(t, cfg), opts)
	if len(list) > 0 {
		if _, err := store.Import(context.Background(), list); err != nil {
			t.Fatalf("import reviews: %v", err)
		}
	}
	return store
}

// MustOpenCatalogStore opens a SQLite catalog seeded with movies.
func MustOpenCatalogStore(t testing.TB, cfg *config.Config, movies ...catalog.Candidate) *catalog.SQLiteStore {
	t.Helper()

	store := catalog.NewSQLiteStore(MustOpenDB(t, cfg))
	if len(movies) > 0 {
		if _, err := store.Import(context.Background(), movies); err != nil {
			t.Fatalf("import movies: %v", err)
		}
	}
	return store
}
