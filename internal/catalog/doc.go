// Package catalog searches the movie catalog for candidates matching a
// free-text query.
//
// Three stores implement Store: SQLiteStore ranks a local FTS5 table,
// AlgoliaStore queries the hosted movies index and TMDBStore searches The
// Movie Database directly. Every store returns at most maxHits candidates
// projected onto the requested attributes; objectID is always present.
package catalog
