// Package reviews models review records and the stores that hold them.
//
// A Store pages through reviews that still need reconciliation and records
// each outcome as an Augmentation. Two implementations exist: SQLiteStore for
// a local database and AlgoliaStore for the hosted reviews index. Both
// exclude reviews tagged augmented (a confirmed match) or already processed,
// so a second pass over an unchanged store selects nothing. Medium-confidence
// reviews become selectable again only when the store is opened with
// RevisitMedium.
package reviews
