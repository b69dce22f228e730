// Package tmdb provides the minimal TMDB API client behind the TMDB-backed
// catalog.
//
// It authenticates requests with either a v3 API key or a v4 read token,
// exposes movie search with an optional release-year filter, and fetches
// movie details with credits appended so the catalog can report directors
// and leading cast. Failures are returned as *services.StatusError so the
// shared retry policy can classify them.
package tmdb
