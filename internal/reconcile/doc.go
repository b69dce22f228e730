// Package reconcile links free-text reviews to catalog movies.
//
// A pass runs four stages per review, strictly in sequence: the Extractor
// asks the text-generation backend to guess the movie, CandidateSearch
// queries the catalog with the guess, the Confirmer asks the backend to pick
// one candidate or abstain, and the Orchestrator records the outcome on the
// review. Backend output is untrusted and always goes through the normalize
// package. A review that fails a stage is logged and left unprocessed; a
// failure to read or write the review store ends the pass.
package reconcile
