// Package main hosts the paradiso CLI entrypoint and command graph.
//
// The Cobra command tree runs reconciliation passes, inspects and seeds the
// review and catalog stores, registers hosted backends, and scaffolds
// configuration. Heavy lifting lives in the internal packages; commands here
// resolve configuration, open stores, and render results.
package main
