// Package normalize turns untrusted generated text into the two shapes the
// reconciliation stages act on: an extraction Guess and a match Decision.
//
// Both entry points are pure, never panic and never return an error. Input
// that cannot be interpreted degrades to the conservative outcome: the low
// confidence marker for extraction, abstention for identifiers.
package normalize
